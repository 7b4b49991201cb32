package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	envOnce sync.Once

	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}
)

// loadDotEnv loads a .env file into the process environment once, best
// effort — a missing file is not an error, since production deployments
// rely on real environment variables instead.
func loadDotEnv() {
	envOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// Load populates cfg (a pointer to a struct tagged with `env:"..."`) from
// environment variables, caching the result per concrete type so
// subsequent calls for the same type return the cached value instead of
// re-reading the environment.
func Load[T any](cfg *T) error {
	loadDotEnv()

	t := reflect.TypeOf(*cfg)

	cacheMu.Lock()
	if cached, ok := cache[t]; ok {
		cacheMu.Unlock()
		*cfg = *(cached.(*T))
		return nil
	}
	cacheMu.Unlock()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", t, err)
	}

	cacheMu.Lock()
	cache[t] = cfg
	cacheMu.Unlock()

	return nil
}

// MustLoad is Load, panicking on failure — intended for use at process
// startup where a missing required setting should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
