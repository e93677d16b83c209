// Package observability provides structured logging, metrics, and
// tracing for the notification pipeline.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// NewLogger builds a JSON slog logger at the given level. Unknown
// levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// EnrichLogger adds pipeline context to a logger. Returns a new logger
// with request_id and event_type fields.
func EnrichLogger(logger *slog.Logger, requestID, eventType string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("request_id", requestID),
		slog.String("event_type", eventType),
	)
}

// LogPublish logs one publish fan-out.
func LogPublish(logger *slog.Logger, eventType, messageID string, pushDispatched, queueEnqueued int) {
	if logger == nil {
		return
	}
	logger.Info("event published",
		slog.String("event_type", eventType),
		slog.String("message_id", messageID),
		slog.Int("push_dispatched", pushDispatched),
		slog.Int("queue_enqueued", queueEnqueued),
	)
}

// LogPushError logs a failed inline dispatch. Push failures are
// isolated, so this is the only trace they leave.
func LogPushError(logger *slog.Logger, eventType, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("push dispatch failed",
		slog.String("event_type", eventType),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogEnqueueError logs a failed queue enqueue.
func LogEnqueueError(logger *slog.Logger, eventType, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("queue enqueue failed",
		slog.String("event_type", eventType),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogDelivery logs one settled queue delivery.
func LogDelivery(logger *slog.Logger, messageID, eventType string, deliveryCount int, outcome string) {
	if logger == nil {
		return
	}
	logger.Debug("message settled",
		slog.String("message_id", messageID),
		slog.String("event_type", eventType),
		slog.Int("delivery_count", deliveryCount),
		slog.String("outcome", outcome),
	)
}

// LogDeadLetter logs a quarantined message.
func LogDeadLetter(logger *slog.Logger, messageID, eventType string, deliveryCount int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("message dead-lettered",
		slog.String("message_id", messageID),
		slog.String("event_type", eventType),
		slog.Int("delivery_count", deliveryCount),
		slog.String("error", err.Error()),
	)
}

// LogReaperSweep logs an audit log purge.
func LogReaperSweep(logger *slog.Logger, removed int) {
	if logger == nil {
		return
	}
	logger.Debug("expired audit entries purged",
		slog.Int("removed", removed),
	)
}

// TimedOperation measures the duration of an operation. Returns a
// function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
