package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/dataagent/config"
)

func TestNewExecutor(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{Sandbox: config.SandboxConfig{
		TimeoutSec:      5,
		MaxSteps:        1000,
		MaxOutputKB:     1,
		FigureWidth:     6,
		FigureHeight:    4,
		AllowedBuiltins: []string{"print", "len"},
		ExtraDenylist:   []string{"corr("},
		Image:           "dataagent-python:latest",
		MemoryMB:        128,
	}}

	t.Run("Interpreter", func(t *testing.T) {
		cfg.Sandbox.Backend = "interpreter"
		executor, err := NewExecutor(logger, cfg)
		require.NoError(t, err)

		interp, ok := executor.(*InterpreterExecutor)
		require.True(t, ok)
		assert.Equal(t, uint64(1000), interp.runner.maxSteps)
		assert.Equal(t, 5*time.Second, interp.runner.timeout)

		result := run(t, interp, "print(df.corr())")
		assert.Equal(t, StateRejected, result.State)
		result = run(t, interp, "print(abs(-1))")
		assert.Equal(t, StateFaulted, result.State)
	})

	t.Run("Container", func(t *testing.T) {
		for _, backend := range []string{"docker", "podman"} {
			cfg.Sandbox.Backend = backend
			executor, err := NewExecutor(logger, cfg)
			require.NoError(t, err)

			container, ok := executor.(*ContainerExecutor)
			require.True(t, ok)
			assert.Equal(t, backend, container.config.Runtime)
			assert.Equal(t, 1024, container.config.MaxOutputBytes)
			assert.Equal(t, 128, container.config.MemoryMB)
			assert.True(t, container.guard.strict)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		cfg.Sandbox.Backend = "local"
		_, err := NewExecutor(logger, cfg)
		require.Error(t, err)
	})
}
