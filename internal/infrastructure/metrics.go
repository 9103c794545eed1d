package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics groups the instruments recorded by ingestion and the monitor
// engine. The zero-config form binds to the global meter, which is a no-op
// until InitializeOTel installs a provider.
type Metrics struct {
	sourceFetches       metric.Int64Counter
	sourceFetchDuration metric.Float64Histogram
	pipelineSteps       metric.Int64Counter
	monitorTriggers     metric.Int64Counter
	subscriptions       metric.Int64UpDownCounter
	notifyFailures      metric.Int64Counter
	liveClients         metric.Int64UpDownCounter
	liveDropped         metric.Int64Counter
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.sourceFetches, err = meter.Int64Counter("twmarket_source_fetch_total",
		metric.WithDescription("Upstream fetches by source and outcome")); err != nil {
		return nil, err
	}
	if m.sourceFetchDuration, err = meter.Float64Histogram("twmarket_source_fetch_duration_seconds",
		metric.WithDescription("Upstream fetch latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.pipelineSteps, err = meter.Int64Counter("twmarket_pipeline_step_total",
		metric.WithDescription("Pipeline step executions by status")); err != nil {
		return nil, err
	}
	if m.monitorTriggers, err = meter.Int64Counter("twmarket_monitor_triggers_total",
		metric.WithDescription("Monitors fired by category")); err != nil {
		return nil, err
	}
	if m.subscriptions, err = meter.Int64UpDownCounter("twmarket_monitor_subscriptions",
		metric.WithDescription("Symbols currently subscribed on the quote feed")); err != nil {
		return nil, err
	}
	if m.notifyFailures, err = meter.Int64Counter("twmarket_notify_failures_total",
		metric.WithDescription("Alert notifications that could not be delivered")); err != nil {
		return nil, err
	}
	if m.liveClients, err = meter.Int64UpDownCounter("twmarket_live_clients",
		metric.WithDescription("Connected live event subscribers")); err != nil {
		return nil, err
	}
	if m.liveDropped, err = meter.Int64Counter("twmarket_live_dropped_total",
		metric.WithDescription("Live subscribers disconnected for falling behind")); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultMetrics binds instruments to the global meter provider
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(otel.Meter(MeterName))
	if err != nil {
		GetLogger().Warn("metrics_unavailable", "error", err)
		return &Metrics{}
	}
	return m
}

// SourceFetch records one upstream request
func (m *Metrics) SourceFetch(ctx context.Context, source, outcome string, elapsed time.Duration) {
	if m == nil || m.sourceFetches == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source), attribute.String("outcome", outcome))
	m.sourceFetches.Add(ctx, 1, attrs)
	m.sourceFetchDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("source", source)))
}

// PipelineStep records a finished step
func (m *Metrics) PipelineStep(ctx context.Context, pipeline, step, status string) {
	if m == nil || m.pipelineSteps == nil {
		return
	}
	m.pipelineSteps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("step", step),
		attribute.String("status", status)))
}

// MonitorTriggered records a fired monitor
func (m *Metrics) MonitorTriggered(ctx context.Context, category string) {
	if m == nil || m.monitorTriggers == nil {
		return
	}
	m.monitorTriggers.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// SubscriptionDelta tracks feed subscriptions
func (m *Metrics) SubscriptionDelta(ctx context.Context, delta int64) {
	if m == nil || m.subscriptions == nil {
		return
	}
	m.subscriptions.Add(ctx, delta)
}

// NotifyFailed counts an undelivered alert
func (m *Metrics) NotifyFailed(ctx context.Context) {
	if m == nil || m.notifyFailures == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1)
}

// LiveClientDelta tracks live event subscribers
func (m *Metrics) LiveClientDelta(ctx context.Context, delta int64) {
	if m == nil || m.liveClients == nil {
		return
	}
	m.liveClients.Add(ctx, delta)
}

// LiveClientDropped counts a subscriber evicted with a full buffer
func (m *Metrics) LiveClientDropped(ctx context.Context) {
	if m == nil || m.liveDropped == nil {
		return
	}
	m.liveDropped.Add(ctx, 1)
}
