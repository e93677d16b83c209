package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupMetricsTest creates a test meter provider and returns a reader to
// collect from.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})

	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordPublish(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordPublish(context.Background(), "ORDER_CREATED", 2, 1)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "storefront.bus.publishes")
	require.NotNil(t, metric)

	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")
	require.NotEmpty(t, sum.DataPoints)
	assert.GreaterOrEqual(t, sum.DataPoints[0].Value, int64(1))
}

func TestRecordPushDispatch(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("records dispatch and latency", func(t *testing.T) {
		m.RecordPushDispatch(ctx, "PRODUCT_CREATED", 50*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		require.NotNil(t, findMetric(rm, "storefront.bus.push_dispatches"))

		latency := findMetric(rm, "storefront.bus.push_latency_ms")
		require.NotNil(t, latency)
		hist, ok := latency.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("records errors when present", func(t *testing.T) {
		m.RecordPushDispatch(ctx, "PRODUCT_CREATED", 10*time.Millisecond, errors.New("handler failed"))

		rm := collectMetrics(t, reader)
		require.NotNil(t, findMetric(rm, "storefront.bus.push_errors"))
	})
}

func TestRecordDeliveryAndDeadLetter(t *testing.T) {
	reader := setupMetricsTest(t)

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordDelivery(ctx, "ORDER_CREATED", "ack", 1)
	m.RecordDelivery(ctx, "ORDER_CREATED", "retry", 2)
	m.RecordDeadLetter(ctx, "ORDER_CREATED")
	m.RecordAuditAppend(ctx, "ORDER_CREATED")

	rm := collectMetrics(t, reader)
	require.NotNil(t, findMetric(rm, "storefront.queue.deliveries"))
	require.NotNil(t, findMetric(rm, "storefront.queue.delivery_count"))
	require.NotNil(t, findMetric(rm, "storefront.queue.dead_letters"))
	require.NotNil(t, findMetric(rm, "storefront.eventlog.appends"))
}

func TestSpanManager(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = provider.Shutdown(context.Background())
	})

	// The package tracer is bound at init, so use a fresh manager against
	// the test provider through the global tracer delegate.
	mgr := NewSpanManager()

	ctx, span := mgr.StartPublishSpan(context.Background(), "ORDER_CREATED")
	mgr.AddSpanEvent(ctx, "enqueued")
	mgr.EndSpanWithError(span, nil)

	_, failed := mgr.StartConsumeSpan(context.Background(), 5)
	mgr.EndSpanWithError(failed, errors.New("batch failed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "storefront.publish", spans[0].Name)
	assert.Equal(t, "storefront.consume", spans[1].Name)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "enqueued", spans[0].Events[0].Name)
	require.NotEmpty(t, spans[1].Events)
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	var m MetricsRecorder = NoopMetrics{}
	m.RecordPublish(ctx, "ORDER_CREATED", 1, 1)
	m.RecordPushDispatch(ctx, "ORDER_CREATED", time.Millisecond, nil)
	m.RecordDelivery(ctx, "ORDER_CREATED", "ack", 1)
	m.RecordDeadLetter(ctx, "ORDER_CREATED")
	m.RecordAuditAppend(ctx, "ORDER_CREATED")

	var s SpanManager = NoopSpanManager{}
	spanCtx, span := s.StartPublishSpan(ctx, "ORDER_CREATED")
	assert.Equal(t, ctx, spanCtx)
	s.AddSpanEvent(spanCtx, "noop")
	s.EndSpanWithError(span, errors.New("ignored"))
}

func logLine(t *testing.T, fn func(logger *slog.Logger)) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fn(logger)

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	return data
}

func TestLogHelpers(t *testing.T) {
	t.Run("publish", func(t *testing.T) {
		data := logLine(t, func(logger *slog.Logger) {
			LogPublish(logger, "ORDER_CREATED", "m1", 2, 1)
		})
		assert.Equal(t, "event published", data["msg"])
		assert.Equal(t, "ORDER_CREATED", data["event_type"])
		assert.Equal(t, float64(2), data["push_dispatched"])
	})

	t.Run("dead letter", func(t *testing.T) {
		data := logLine(t, func(logger *slog.Logger) {
			LogDeadLetter(logger, "m1", "ORDER_CREATED", 3, errors.New("gave up"))
		})
		assert.Equal(t, "WARN", data["level"])
		assert.Equal(t, float64(3), data["delivery_count"])
		assert.Equal(t, "gave up", data["error"])
	})

	t.Run("nil logger is safe", func(t *testing.T) {
		LogPublish(nil, "ORDER_CREATED", "m1", 0, 0)
		LogPushError(nil, "ORDER_CREATED", "s1", errors.New("x"))
		LogDelivery(nil, "m1", "ORDER_CREATED", 1, "ack")
		LogReaperSweep(nil, 1)
		assert.Nil(t, EnrichLogger(nil, "req-1", "ORDER_CREATED"))
	})
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		assert.NotNil(t, NewLogger(level))
	}
}

func TestEnrichLogger(t *testing.T) {
	data := logLine(t, func(logger *slog.Logger) {
		EnrichLogger(logger, "req-1", "ORDER_CREATED").Info("hello")
	})
	assert.Equal(t, "req-1", data["request_id"])
	assert.Equal(t, "ORDER_CREATED", data["event_type"])
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), float64(0))
}
