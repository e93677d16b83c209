// Package orders exposes order placement and removal and derives the
// ORDER_* events they emit.
package orders

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

// CreateInput is one order placement request.
type CreateInput struct {
	Email      string
	ProductIDs []string
	Payment    string
	Shipping   records.Shipping
	RequestID  string
}

// BuildEvent derives the order event for one mutation. It is pure: the
// same order always produces the same event.
func BuildEvent(o records.Order, tag event.Type, requestID string) event.OrderEvent {
	return event.OrderEvent{
		Email:   o.Email,
		OrderID: o.ID,
		Billing: event.OrderBilling{
			Payment:    o.Billing.Payment,
			TotalPrice: o.Billing.TotalPrice,
		},
		Shipping: event.OrderShipping{
			Type:    o.Shipping.Type,
			Carrier: o.Shipping.Carrier,
		},
		ProductCodes: o.ProductCodes(),
		RequestID:    requestID,
	}
}

// Service places and removes orders and publishes the matching event
// after every successful mutation. Publishing is best effort: a publish
// failure is logged and never rolls back or fails the mutation.
type Service struct {
	orders    records.OrderStore
	products  records.ProductStore
	registry  *event.Registry
	publisher Publisher
	logger    *slog.Logger
}

// NewService wires an order service.
func NewService(orders records.OrderStore, products records.ProductStore, registry *event.Registry, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orders:    orders,
		products:  products,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// Get returns one order by (email, id).
func (s *Service) Get(ctx context.Context, email, id string) (records.Order, error) {
	return s.orders.Get(ctx, email, id)
}

// ListByEmail returns all orders for an email.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]records.Order, error) {
	return s.orders.ListByEmail(ctx, email)
}

// List returns all orders.
func (s *Service) List(ctx context.Context) ([]records.Order, error) {
	return s.orders.List(ctx)
}

// Create validates the requested product IDs, persists the order with
// the catalog prices at placement time, and publishes ORDER_CREATED.
// An unknown product ID fails the placement with records.ErrNotFound
// before anything is written.
func (s *Service) Create(ctx context.Context, in CreateInput) (records.Order, error) {
	items, err := s.products.GetByIDs(ctx, in.ProductIDs)
	if err != nil {
		return records.Order{}, err
	}

	lineItems := make([]records.OrderProduct, len(items))
	total := 0.0
	for i, p := range items {
		lineItems[i] = records.OrderProduct{
			ID:    p.ID,
			Name:  p.Name,
			Code:  p.Code,
			Price: p.Price,
			Model: p.Model,
		}
		total += p.Price
	}

	created, err := s.orders.Create(ctx, records.Order{
		Email:    in.Email,
		Billing:  records.Billing{Payment: in.Payment, TotalPrice: total},
		Shipping: in.Shipping,
		Products: lineItems,
	})
	if err != nil {
		return records.Order{}, err
	}

	s.publish(ctx, event.OrderCreated, created, in.RequestID)
	return created, nil
}

// Delete removes an order and publishes ORDER_DELETED carrying the
// deleted order's state.
func (s *Service) Delete(ctx context.Context, email, id, requestID string) (records.Order, error) {
	deleted, err := s.orders.Delete(ctx, email, id)
	if err != nil {
		return records.Order{}, err
	}
	s.publish(ctx, event.OrderDeleted, deleted, requestID)
	return deleted, nil
}

func (s *Service) publish(ctx context.Context, tag event.Type, o records.Order, requestID string) {
	if s.publisher == nil {
		return
	}

	env, err := s.registry.Encode(tag, BuildEvent(o, tag, requestID))
	if err != nil {
		s.logger.Error("encode order event failed",
			"event_type", string(tag),
			"order_id", o.ID,
			"error", err)
		return
	}

	receipt, err := s.publisher.Publish(ctx, env)
	if err != nil {
		s.logger.Error("publish order event failed",
			"event_type", string(tag),
			"order_id", o.ID,
			"error", err)
		return
	}

	s.logger.Info("order event published",
		"event_type", string(tag),
		"order_id", o.ID,
		"message_id", receipt.MessageID,
		"push_dispatched", receipt.PushDispatched,
		"queue_enqueued", receipt.QueueEnqueued)
}
