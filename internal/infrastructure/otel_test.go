package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"twmarket/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	cfg := config.TelemetryConfig{
		TracingEnabled: true,
		MetricsEnabled: true,
		SampleRatio:    1,
		Environment:    "test",
	}

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.MetricsHandler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabled(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{}, quietLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.MetricsHandler())
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{MetricsEnabled: true, Environment: "test"}, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.PipelineStep(context.Background(), "market_stats", "taiex", "completed")

	server := httptest.NewServer(providers.MetricsHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "twmarket_pipeline_step_total")
}

func TestMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.SourceFetch(ctx, "twse", "ok", 120*time.Millisecond)
	metrics.SourceFetch(ctx, "twse", "no_data", 10*time.Millisecond)
	metrics.MonitorTriggered(ctx, "alerts")
	metrics.SubscriptionDelta(ctx, 2)
	metrics.SubscriptionDelta(ctx, -1)
	metrics.NotifyFailed(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["twmarket_source_fetch_total"])
	assert.Equal(t, int64(1), sums["twmarket_monitor_triggers_total"])
	assert.Equal(t, int64(1), sums["twmarket_monitor_subscriptions"])
	assert.Equal(t, int64(1), sums["twmarket_notify_failures_total"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SourceFetch(context.Background(), "tpex", "error", time.Second)
		m.PipelineStep(context.Background(), "tickers", "equity_quotes", "failed")
		m.MonitorTriggered(context.Background(), "orders")
		m.SubscriptionDelta(context.Background(), 1)
		m.NotifyFailed(context.Background())
	})
	assert.NotNil(t, DefaultMetrics())
}

func TestStartSpanRecordsError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "fetch", attribute.String("source", "taifex"))
	defer span.End()
	assert.NotPanics(t, func() {
		RecordError(ctx, assert.AnError)
		RecordError(ctx, nil)
	})
}
