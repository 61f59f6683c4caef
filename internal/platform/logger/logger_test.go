package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskplan-api/internal/config"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", "debug", slog.LevelDebug, true},
		{"upper case", "WARN", slog.LevelWarn, true},
		{"error", "error", slog.LevelError, true},
		{"unknown falls back to info", "verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := logger.ParseLevel(tt.in)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	log, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, &buf)
	require.NoError(t, err)
	require.NotNil(t, log)

	log.Info("dropped")
	log.Warn("kept", slog.String("component", "test"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "test", entry["component"])
	assert.Same(t, log, slog.Default())
}

func TestFromContext(t *testing.T) {
	t.Run("without logger returns the fallback", func(t *testing.T) {
		fallback, _ := logger.NewCaptureLogger(t)
		assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	})

	t.Run("returns the carried logger", func(t *testing.T) {
		ctx, buf := logger.NewCaptureContext(t)
		logger.FromContext(ctx).Info("hello")
		logger.AssertLogContains(t, buf, "hello")
	})

	t.Run("attaches the request id", func(t *testing.T) {
		ctx, buf := logger.NewCaptureContext(t)
		ctx = logger.WithRequestID(ctx, "req-42")
		logger.FromContext(ctx).Info("traced")
		logger.AssertLogField(t, buf, "request_id", "req-42")
	})
}

func TestRequestIDFromContext(t *testing.T) {
	_, ok := logger.RequestIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := logger.RequestIDFromContext(logger.WithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
