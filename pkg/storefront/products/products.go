// Package products exposes catalog mutations and derives the PRODUCT_*
// events they emit.
package products

import (
	"context"
	"log/slog"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/records"
)

// Publisher publishes envelopes to the notification pipeline.
type Publisher interface {
	Publish(ctx context.Context, env event.Envelope) (event.Receipt, error)
}

// BuildEvent derives the product event for one mutation. It is pure:
// the same inputs always produce the same event.
func BuildEvent(p records.Product, tag event.Type, email, requestID string) event.ProductEvent {
	return event.ProductEvent{
		Email:        email,
		EventType:    tag,
		ProductID:    p.ID,
		ProductCode:  p.Code,
		ProductPrice: p.Price,
		RequestID:    requestID,
	}
}

// Service mutates the catalog and publishes the matching event after
// every successful mutation. Publishing is best effort: a publish
// failure is logged and never rolls back or fails the mutation.
type Service struct {
	store     records.ProductStore
	registry  *event.Registry
	publisher Publisher
	logger    *slog.Logger
}

// NewService wires a product service.
func NewService(store records.ProductStore, registry *event.Registry, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, registry: registry, publisher: publisher, logger: logger}
}

// Get returns one product by ID.
func (s *Service) Get(ctx context.Context, id string) (records.Product, error) {
	return s.store.GetByID(ctx, id)
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]records.Product, error) {
	return s.store.List(ctx)
}

// Create persists a new product and publishes PRODUCT_CREATED.
func (s *Service) Create(ctx context.Context, p records.Product, email, requestID string) (records.Product, error) {
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return records.Product{}, err
	}
	s.publish(ctx, event.ProductCreated, created, email, requestID)
	return created, nil
}

// Update replaces a product and publishes PRODUCT_UPDATED.
func (s *Service) Update(ctx context.Context, p records.Product, email, requestID string) (records.Product, error) {
	updated, err := s.store.Update(ctx, p)
	if err != nil {
		return records.Product{}, err
	}
	s.publish(ctx, event.ProductUpdated, updated, email, requestID)
	return updated, nil
}

// Delete removes a product and publishes PRODUCT_DELETED.
func (s *Service) Delete(ctx context.Context, id, email, requestID string) (records.Product, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return records.Product{}, err
	}
	s.publish(ctx, event.ProductDeleted, deleted, email, requestID)
	return deleted, nil
}

func (s *Service) publish(ctx context.Context, tag event.Type, p records.Product, email, requestID string) {
	if s.publisher == nil {
		return
	}

	env, err := s.registry.Encode(tag, BuildEvent(p, tag, email, requestID))
	if err != nil {
		s.logger.Error("encode product event failed",
			"event_type", string(tag),
			"product_id", p.ID,
			"error", err)
		return
	}

	receipt, err := s.publisher.Publish(ctx, env)
	if err != nil {
		s.logger.Error("publish product event failed",
			"event_type", string(tag),
			"product_id", p.ID,
			"error", err)
		return
	}

	s.logger.Info("product event published",
		"event_type", string(tag),
		"product_id", p.ID,
		"message_id", receipt.MessageID,
		"push_dispatched", receipt.PushDispatched,
		"queue_enqueued", receipt.QueueEnqueued)
}
