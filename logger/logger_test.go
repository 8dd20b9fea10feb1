package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isdmx/dataagent/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStd points os.Stdout and os.Stderr at files for the rest of the test
func captureStd(t *testing.T) (stdout, stderr *os.File) {
	t.Helper()
	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	stderr, err = os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = stdout, stderr
	t.Cleanup(func() {
		os.Stdout, os.Stderr = origOut, origErr
		_ = stdout.Close()
		_ = stderr.Close()
	})
	return stdout, stderr
}

func TestLoggerNew(t *testing.T) {
	t.Run("ValidDevelopmentMode", func(t *testing.T) {
		logger, err := New("development", "debug")
		require.NoError(t, err)
		assert.NotNil(t, logger)
		logger.Sync()
	})

	t.Run("ValidProductionMode", func(t *testing.T) {
		logger, err := New("production", "info")
		require.NoError(t, err)
		assert.NotNil(t, logger)
		logger.Sync()
	})

	t.Run("InvalidMode", func(t *testing.T) {
		_, err := New("invalid_mode", "info")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging mode")
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := New("production", "invalid_level")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging level")
	})

	t.Run("ValidLevels", func(t *testing.T) {
		levels := []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
		for _, level := range levels {
			t.Run(level, func(t *testing.T) {
				logger, err := New("production", level)
				require.NoError(t, err)
				assert.NotNil(t, logger)
				logger.Sync()
			})
		}
	})
}

func TestLoggerNewFromConfig(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := &config.Config{
			Logging: config.LoggingConfig{
				Mode:  "development",
				Level: "debug",
			},
		}
		logger, err := NewFromConfig(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		logger.Sync()
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := &config.Config{
			Logging: config.LoggingConfig{
				Mode:  "invalid_mode",
				Level: "info",
			},
		}
		_, err := NewFromConfig(cfg)
		assert.Error(t, err)
	})
}

func TestLoggerOutput(t *testing.T) {
	t.Run("ProductionWritesJSONToStderr", func(t *testing.T) {
		stdout, stderr := captureStd(t)

		logger, err := New("production", "info")
		require.NoError(t, err)
		logger.Info("dataset loaded")
		_ = logger.Sync()

		out, err := os.ReadFile(stdout.Name())
		require.NoError(t, err)
		assert.Empty(t, out, "stdout carries the MCP stdio transport")

		data, err := os.ReadFile(stderr.Name())
		require.NoError(t, err)
		line := strings.TrimSpace(string(data))
		require.NotEmpty(t, line)

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "dataset loaded", entry["msg"])
		assert.Equal(t, "dataagent", entry["service"])
		assert.Contains(t, entry, "timestamp")
	})

	t.Run("LevelFiltersEntries", func(t *testing.T) {
		_, stderr := captureStd(t)

		logger, err := New("development", "warn")
		require.NoError(t, err)
		logger.Info("hidden")
		logger.Warn("shown")
		_ = logger.Sync()

		data, err := os.ReadFile(stderr.Name())
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hidden")
		assert.Contains(t, string(data), "shown")
		assert.Contains(t, string(data), `"service": "dataagent"`)
	})
}
