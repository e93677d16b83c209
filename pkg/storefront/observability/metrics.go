package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records one fan-out with its subscriber counts.
	RecordPublish(ctx context.Context, eventType string, pushDispatched, queueEnqueued int)

	// RecordPushDispatch records one inline dispatch with its duration
	// and error status.
	RecordPushDispatch(ctx context.Context, eventType string, duration time.Duration, err error)

	// RecordDelivery records one settled queue delivery.
	RecordDelivery(ctx context.Context, eventType, outcome string, deliveryCount int)

	// RecordDeadLetter records one quarantined message.
	RecordDeadLetter(ctx context.Context, eventType string)

	// RecordAuditAppend records one event log write.
	RecordAuditAppend(ctx context.Context, eventType string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes       metric.Int64Counter
	pushDispatches  metric.Int64Counter
	pushLatency     metric.Float64Histogram
	pushErrors      metric.Int64Counter
	queueDeliveries metric.Int64Counter
	deliveryCount   metric.Int64Histogram
	deadLetters     metric.Int64Counter
	auditAppends    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("storefront")

	publishes, err := meter.Int64Counter("storefront.bus.publishes",
		metric.WithDescription("Number of events published"),
	)
	if err != nil {
		return nil, err
	}

	pushDispatches, err := meter.Int64Counter("storefront.bus.push_dispatches",
		metric.WithDescription("Number of inline push dispatches"),
	)
	if err != nil {
		return nil, err
	}

	pushLatency, err := meter.Float64Histogram("storefront.bus.push_latency_ms",
		metric.WithDescription("Inline push dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	pushErrors, err := meter.Int64Counter("storefront.bus.push_errors",
		metric.WithDescription("Number of failed inline push dispatches"),
	)
	if err != nil {
		return nil, err
	}

	queueDeliveries, err := meter.Int64Counter("storefront.queue.deliveries",
		metric.WithDescription("Number of settled queue deliveries"),
	)
	if err != nil {
		return nil, err
	}

	deliveryCount, err := meter.Int64Histogram("storefront.queue.delivery_count",
		metric.WithDescription("Delivery attempts per settled message"),
	)
	if err != nil {
		return nil, err
	}

	deadLetters, err := meter.Int64Counter("storefront.queue.dead_letters",
		metric.WithDescription("Number of quarantined messages"),
	)
	if err != nil {
		return nil, err
	}

	auditAppends, err := meter.Int64Counter("storefront.eventlog.appends",
		metric.WithDescription("Number of audit log writes"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:       publishes,
		pushDispatches:  pushDispatches,
		pushLatency:     pushLatency,
		pushErrors:      pushErrors,
		queueDeliveries: queueDeliveries,
		deliveryCount:   deliveryCount,
		deadLetters:     deadLetters,
		auditAppends:    auditAppends,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records one fan-out.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType string, pushDispatched, queueEnqueued int) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Int("push_dispatched", pushDispatched),
		attribute.Int("queue_enqueued", queueEnqueued),
	))
}

// RecordPushDispatch records one inline dispatch.
func (m *otelMetrics) RecordPushDispatch(ctx context.Context, eventType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
	}

	m.pushDispatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pushLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.pushErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDelivery records one settled delivery.
func (m *otelMetrics) RecordDelivery(ctx context.Context, eventType, outcome string, deliveryCount int) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	}
	m.queueDeliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryCount.Record(ctx, int64(deliveryCount), metric.WithAttributes(attrs...))
}

// RecordDeadLetter records one quarantined message.
func (m *otelMetrics) RecordDeadLetter(ctx context.Context, eventType string) {
	m.deadLetters.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordAuditAppend records one event log write.
func (m *otelMetrics) RecordAuditAppend(ctx context.Context, eventType string) {
	m.auditAppends.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
