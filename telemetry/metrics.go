package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dataagent"

// Metrics holds the Prometheus collectors. They are registered on their own
// registry so tests and multiple instances never collide.
type Metrics struct {
	Registry *prometheus.Registry

	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	RejectionsTotal   *prometheus.CounterVec
	ImagesTotal       prometheus.Counter
	ToolCallsTotal    *prometheus.CounterVec
	DatasetsLoaded    prometheus.Gauge
	SessionsPruned    prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Snippet executions by backend and terminal state.",
		}, []string{"backend", "state"}),

		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Snippet execution duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"backend"}),

		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "rejections_total",
			Help:      "Snippets refused by the guard, by backend.",
		}, []string{"backend"}),

		ImagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "images_total",
			Help:      "Successful executions that produced a chart.",
		}),

		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "MCP tool calls by tool and status.",
		}, []string{"tool", "status"}),

		DatasetsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "loaded",
			Help:      "Datasets currently held in the registry.",
		}),

		SessionsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "sessions_pruned_total",
			Help:      "Conversation sessions removed by retention.",
		}),
	}
}
