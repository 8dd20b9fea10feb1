package sandbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/isdmx/dataagent/telemetry"
)

// InstrumentedExecutor records a span, metrics and a log line around
// every execution of the wrapped executor
type InstrumentedExecutor struct {
	next    Executor
	backend string
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// NewInstrumentedExecutor wraps next; backend labels the metrics
func NewInstrumentedExecutor(next Executor, backend string, metrics *telemetry.Metrics, logger *zap.Logger) *InstrumentedExecutor {
	return &InstrumentedExecutor{next: next, backend: backend, metrics: metrics, logger: logger}
}

// Execute delegates to the wrapped executor
func (e *InstrumentedExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "sandbox.execute",
		attribute.String("sandbox.backend", e.backend),
		attribute.Int("sandbox.code_bytes", len(req.Code)),
	)
	defer span.End()

	start := time.Now()
	result, err := e.next.Execute(ctx, req)
	elapsed := time.Since(start)

	e.metrics.ExecutionDuration.WithLabelValues(e.backend).Observe(elapsed.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.ExecutionsTotal.WithLabelValues(e.backend, "error").Inc()
		e.logger.Error("execution failed", zap.String("backend", e.backend), zap.Error(err))
		return result, err
	}

	state := result.State.String()
	span.SetAttributes(
		attribute.String("sandbox.state", state),
		attribute.Bool("sandbox.image", result.HasImage()),
	)
	e.metrics.ExecutionsTotal.WithLabelValues(e.backend, state).Inc()
	switch {
	case result.State == StateRejected:
		e.metrics.RejectionsTotal.WithLabelValues(e.backend).Inc()
	case result.HasImage():
		e.metrics.ImagesTotal.Inc()
	}

	e.logger.Debug("execution finished",
		zap.String("backend", e.backend),
		zap.String("state", state),
		zap.Duration("elapsed", elapsed),
		zap.Int("output_bytes", len(result.Output)),
	)
	return result, nil
}
