package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zaptest"
)

func TestMetrics(t *testing.T) {
	t.Run("IndependentRegistries", func(t *testing.T) {
		a := NewMetrics()
		b := NewMetrics()

		a.ExecutionsTotal.WithLabelValues("interpreter", "succeeded").Inc()
		assert.InDelta(t, 1, testutil.ToFloat64(a.ExecutionsTotal.WithLabelValues("interpreter", "succeeded")), 0)
		assert.InDelta(t, 0, testutil.ToFloat64(b.ExecutionsTotal.WithLabelValues("interpreter", "succeeded")), 0)
	})

	t.Run("GaugeAndCounters", func(t *testing.T) {
		m := NewMetrics()
		m.DatasetsLoaded.Set(3)
		m.SessionsPruned.Add(2)
		m.ImagesTotal.Inc()

		assert.InDelta(t, 3, testutil.ToFloat64(m.DatasetsLoaded), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(m.SessionsPruned), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.ImagesTotal), 0)
	})
}

func TestServer(t *testing.T) {
	metrics := NewMetrics()
	metrics.ToolCallsTotal.WithLabelValues("execute_analysis_code", "ok").Inc()
	srv := NewServer(zaptest.NewLogger(t), metrics, 0)

	t.Run("Healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `dataagent_mcp_tool_calls_total{status="ok",tool="execute_analysis_code"} 1`)
	})

	t.Run("StartAndShutdown", func(t *testing.T) {
		require.NoError(t, srv.Start())
		require.NoError(t, srv.Shutdown(context.Background()))
	})
}

func TestTracer(t *testing.T) {
	t.Run("DisabledIsNoop", func(t *testing.T) {
		shutdown, err := InitTracer(context.Background(), TracerConfig{})
		require.NoError(t, err)
		require.NoError(t, shutdown(context.Background()))
	})

	t.Run("StartSpan", func(t *testing.T) {
		ctx, span := StartSpan(context.Background(), "test", attribute.String("k", "v"))
		defer span.End()
		assert.NotNil(t, ctx)
	})
}
