// Package telemetry carries the process metrics, tracing and the side HTTP
// server that exposes them.
//
// Metrics live on a private Prometheus registry. Tracing is off unless
// enabled, in which case spans are exported over OTLP/HTTP.
//
// Usage:
//
//	metrics := telemetry.NewMetrics()
//	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{Enabled: true})
//	srv := telemetry.NewServer(logger, metrics, 9090)
//	err = srv.Start()
package telemetry
