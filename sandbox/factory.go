package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/dataagent/config"
)

// NewExecutor creates the executor selected by sandbox.backend
func NewExecutor(logger *zap.Logger, cfg *config.Config) (Executor, error) {
	guard := NewGuard(cfg.Sandbox.ExtraDenylist)

	switch cfg.Sandbox.Backend {
	case "interpreter":
		builder := NewBuilder(BuilderConfig{
			Builtins:       cfg.Sandbox.AllowedBuiltins,
			FigureWidth:    cfg.Sandbox.FigureWidth,
			FigureHeight:   cfg.Sandbox.FigureHeight,
			MaxOutputBytes: cfg.MaxOutputBytes(),
		})
		return NewInterpreterExecutor(logger,
			WithGuard(guard),
			WithEnvironmentBuilder(builder),
			WithLimits(cfg.Sandbox.MaxSteps, cfg.GetTimeout()),
		), nil
	case "docker", "podman":
		return NewContainerExecutor(logger, ContainerConfig{
			Runtime:        cfg.Sandbox.Backend,
			Image:          cfg.Sandbox.Image,
			MemoryMB:       cfg.Sandbox.MemoryMB,
			Timeout:        cfg.GetTimeout(),
			Builtins:       cfg.Sandbox.AllowedBuiltins,
			FigureWidth:    cfg.Sandbox.FigureWidth,
			FigureHeight:   cfg.Sandbox.FigureHeight,
			MaxOutputBytes: cfg.MaxOutputBytes(),
		}, WithContainerGuard(guard)), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
