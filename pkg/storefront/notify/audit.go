// Package notify contains the pipeline's subscribers: the audit logger,
// the order confirmation emailer, and the billing trigger.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/eventlog"
)

// AuditLogger is the unfiltered push subscriber. It decodes every
// envelope and appends one event-log entry per event. Entry keys derive
// from the envelope's original timestamp, so a redelivered event writes
// the same row it wrote the first time.
type AuditLogger struct {
	registry *event.Registry
	store    eventlog.Store
	logger   *slog.Logger
}

// NewAuditLogger wires an audit logger over the given store.
func NewAuditLogger(registry *event.Registry, store eventlog.Store, logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{registry: registry, store: store, logger: logger}
}

// Handle implements event.PushHandler.
func (a *AuditLogger) Handle(ctx context.Context, env event.Envelope) error {
	payload, err := a.registry.Decode(env)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	entry, err := entryFor(env, payload)
	if err != nil {
		return err
	}

	if err := a.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	a.logger.Debug("audit entry appended",
		"event_type", string(env.EventType),
		"partition_key", entry.PartitionKey,
		"sort_key", entry.SortKey)
	return nil
}

func entryFor(env event.Envelope, payload any) (eventlog.Entry, error) {
	switch p := payload.(type) {
	case *event.OrderEvent:
		detail, err := json.Marshal(struct {
			ProductCodes []string `json:"productCodes"`
		}{ProductCodes: p.ProductCodes})
		if err != nil {
			return eventlog.Entry{}, fmt.Errorf("marshal order detail: %w", err)
		}
		return eventlog.NewEntry("order", p.OrderID, env.EventType, env.OccurredAt,
			p.Email, p.RequestID, eventlog.Info{
				SubjectID: p.OrderID,
				Detail:    detail,
			}), nil

	case *event.ProductEvent:
		detail, err := json.Marshal(struct {
			ProductPrice float64 `json:"productPrice"`
		}{ProductPrice: p.ProductPrice})
		if err != nil {
			return eventlog.Entry{}, fmt.Errorf("marshal product detail: %w", err)
		}
		return eventlog.NewEntry("product", p.ProductCode, env.EventType, env.OccurredAt,
			p.Email, p.RequestID, eventlog.Info{
				SubjectID: p.ProductID,
				Detail:    detail,
			}), nil

	default:
		return eventlog.Entry{}, fmt.Errorf("unsupported audit payload %T", payload)
	}
}
