package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moler-go/moler/core/config"
)

type testRunnerConfig struct {
	TickInterval string `env:"MOLER_TICK_INTERVAL" envDefault:"5ms"`
	PoolSize     int    `env:"MOLER_POOL_SIZE" envDefault:"8"`
}

func TestLoad_DefaultsApply(t *testing.T) {
	var cfg testRunnerConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "5ms", cfg.TickInterval)
	assert.Equal(t, 8, cfg.PoolSize)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	os.Setenv("MOLER_POOL_SIZE", "16")
	defer os.Unsetenv("MOLER_POOL_SIZE")

	type distinctConfig struct {
		PoolSize int `env:"MOLER_POOL_SIZE" envDefault:"8"`
	}
	var cfg distinctConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 16, cfg.PoolSize)
}
