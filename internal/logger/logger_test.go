package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/logger"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    logger.LogLevel
		log      func(l logger.Logger)
		expected bool
	}{
		{"debug suppressed at info", logger.LogLevelInfo, func(l logger.Logger) { l.Debug("msg") }, false},
		{"info emitted at info", logger.LogLevelInfo, func(l logger.Logger) { l.Info("msg") }, true},
		{"warn emitted at info", logger.LogLevelInfo, func(l logger.Logger) { l.Warn("msg") }, true},
		{"trace suppressed at debug", logger.LogLevelDebug, func(l logger.Logger) { l.Trace("msg") }, false},
		{"trace emitted at trace", logger.LogLevelTrace, func(l logger.Logger) { l.Trace("msg") }, true},
		{"error always emitted", logger.LogLevelError, func(l logger.Logger) { l.Error("msg") }, true},
		{"explicit level honours threshold", logger.LogLevelWarn, func(l logger.Logger) { l.Log(logger.LogLevelInfo, "msg") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.log(logger.NewSlogLogger(&buf, tt.level, time.UTC))
			assert.Equal(t, tt.expected, strings.Contains(buf.String(), "msg=msg"), buf.String())
		})
	}
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, nil).
		Module("analysis").
		Module("train").
		With(logger.String("camera_id", "camera0"))

	log.Info("train started",
		logger.String("train_id", "train-1718000000"),
		logger.Float64("coverage", 0.123456),
		logger.Int64("track_id", 42),
		logger.Duration("elapsed", 1500*time.Millisecond),
		logger.Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "module=analysis.train")
	assert.Contains(t, out, "camera_id=camera0")
	assert.Contains(t, out, "train_id=train-1718000000")
	assert.Contains(t, out, "coverage=0.123")
	assert.Contains(t, out, "track_id=42")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, nil)

	log.WithContext(logger.WithTraceID(context.Background(), "abc-123")).Info("request")
	assert.Contains(t, buf.String(), "trace_id=abc-123")

	buf.Reset()
	log.WithContext(context.Background()).Info("request")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestCentralLoggerWritesJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug", MaxSize: 1},
	})
	require.NoError(t, err)

	central.Module("datastore").Debug("opened", logger.String("backend", "sqlite"))
	require.NoError(t, central.Flush())
	require.NoError(t, central.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "opened", record["msg"])
	assert.Equal(t, "datastore", record["module"])
	assert.Equal(t, "sqlite", record["backend"])
	assert.Equal(t, "DEBUG", record["level"])
}

func TestCentralLoggerRotate(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: filepath.Join(dir, "app.log"), Level: "info", MaxSize: 1},
	})
	require.NoError(t, err)

	central.Module("analysis").Info("before rotation")
	require.NoError(t, central.Rotate())
	central.Module("analysis").Info("after rotation")
	require.NoError(t, central.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	current, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(current), "after rotation")
	assert.NotContains(t, string(current), "before rotation")
}

func TestCentralLoggerModuleLevels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "warn",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{"eventbus": "debug"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = central.Close() })

	central.Module("eventbus").Debug("visible")
	central.Module("analysis").Debug("hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
	assert.NotContains(t, string(data), "hidden")
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Not/AZone"})
	require.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	t.Parallel()
	require.NotNil(t, logger.Global())
	require.NotNil(t, logger.Global().Module("test"))
}
