package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoDataset is returned when a request carries no table to bind as df
var ErrNoDataset = errors.New("no dataset bound to the request")

// InterpreterExecutor runs snippets in-process with the embedded interpreter.
// Each call gets its own namespace, canvas and output buffer, so calls may
// run concurrently.
type InterpreterExecutor struct {
	logger  *zap.Logger
	guard   *Guard
	builder EnvironmentBuilder
	runner  *Runner
}

// InterpreterOption defines a functional option for InterpreterExecutor
type InterpreterOption func(*InterpreterExecutor)

// WithGuard replaces the default guard
func WithGuard(g *Guard) InterpreterOption {
	return func(e *InterpreterExecutor) {
		e.guard = g
	}
}

// WithEnvironmentBuilder replaces the default environment builder
func WithEnvironmentBuilder(b EnvironmentBuilder) InterpreterOption {
	return func(e *InterpreterExecutor) {
		e.builder = b
	}
}

// WithLimits sets the step cap and wall-clock timeout of each run
func WithLimits(maxSteps uint64, timeout time.Duration) InterpreterOption {
	return func(e *InterpreterExecutor) {
		e.runner = NewRunner(maxSteps, timeout)
	}
}

// NewInterpreterExecutor creates an executor with the default guard, the
// default whitelist and no limits unless options say otherwise
func NewInterpreterExecutor(logger *zap.Logger, opts ...InterpreterOption) *InterpreterExecutor {
	executor := &InterpreterExecutor{
		logger:  logger,
		guard:   NewGuard(nil),
		builder: NewBuilder(BuilderConfig{}),
		runner:  NewRunner(0, 0),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute guards, prepares and runs one snippet
func (e *InterpreterExecutor) Execute(ctx context.Context, req ExecuteRequest) (result ExecuteResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("interpreter execution panicked", zap.Any("panic", p))
			result, err = faulted(fmt.Sprintf("internal error: %v", p)), nil
		}
	}()

	if err := e.guard.Check(req.Code); err != nil {
		e.logger.Info("snippet rejected", zap.Error(err))
		return rejected(), nil
	}
	if req.Dataset == nil {
		return ExecuteResult{}, ErrNoDataset
	}

	env := e.builder.Build(req.Dataset)
	result = e.runner.Run(ctx, req.Code, env)
	if result.State != StateSucceeded || result.Figure == nil {
		return result, nil
	}

	img, err := result.Figure.RenderPNG()
	if err != nil {
		e.logger.Warn("failed to render figure", zap.Error(err))
		return faulted(fmt.Sprintf("failed to render figure: %v", err)), nil
	}
	result.Image = img
	return result, nil
}
