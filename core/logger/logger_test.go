package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moler-go/moler/core/logger"
)

func TestNew_DevelopmentIsTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithDevelopment("molerctl"), logger.WithOutput(&buf))
	l.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "app=molerctl")
}

func TestNew_ProductionIsJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithProduction("molerctl"), logger.WithOutput(&buf))
	l.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "molerctl", record["app"])
}

func TestNew_LevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
	l.Info("should not appear")
	l.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestNew_WithAttrAppliesToEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithOutput(&buf), logger.WithAttr(logger.Component("runner")))
	l.Info("tick")
	assert.Contains(t, buf.String(), "component=runner")
}

func TestNew_WithContextValueInjectsAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithOutput(&buf), logger.WithContextValue("request_id", "request_id"))

	ctx := context.WithValue(context.Background(), "request_id", "abc-123")
	l.InfoContext(ctx, "handled")

	assert.Contains(t, buf.String(), "request_id=abc-123")
}

func TestNew_WithContextExtractors(t *testing.T) {
	var buf bytes.Buffer
	extractor := func(ctx context.Context) (slog.Attr, bool) {
		v, ok := ctx.Value("observer_id").(uint64)
		if !ok {
			return slog.Attr{}, false
		}
		return logger.ObserverID(v), true
	}
	l := logger.New(logger.WithOutput(&buf), logger.WithContextExtractors(extractor))

	ctx := context.WithValue(context.Background(), "observer_id", uint64(42))
	l.InfoContext(ctx, "fed")

	assert.True(t, strings.Contains(buf.String(), "observer_id=42"))
}

func TestSetAsDefault(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithOutput(&buf))
	logger.SetAsDefault(l)
	slog.Info("via default")
	assert.Contains(t, buf.String(), "via default")
}
