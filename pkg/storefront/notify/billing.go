package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// Charge is one billing request derived from an order.
type Charge struct {
	OrderID string
	Email   string
	Payment string
	Amount  float64
}

// Gateway initiates charges. Implementations wrap a real payment
// provider; tests use a recording fake.
type Gateway interface {
	Charge(ctx context.Context, charge Charge) error
}

// LogGateway is a Gateway that only logs the charge. It is the default
// when no provider is configured.
type LogGateway struct {
	Logger *slog.Logger
}

// Charge implements Gateway.
func (g LogGateway) Charge(ctx context.Context, charge Charge) error {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("charge (not executed, log only)",
		"order_id", charge.OrderID,
		"amount", charge.Amount,
		"payment", charge.Payment)
	return nil
}

// BillingNotifier is a push subscriber filtered to ORDER_CREATED that
// triggers the charge for a newly placed order.
type BillingNotifier struct {
	registry *event.Registry
	gateway  Gateway
	logger   *slog.Logger
}

// NewBillingNotifier wires a billing notifier over the given gateway.
func NewBillingNotifier(registry *event.Registry, gateway Gateway, logger *slog.Logger) *BillingNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingNotifier{registry: registry, gateway: gateway, logger: logger}
}

// Handle implements event.PushHandler.
func (b *BillingNotifier) Handle(ctx context.Context, env event.Envelope) error {
	payload, err := b.registry.Decode(env)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	oe, ok := payload.(*event.OrderEvent)
	if !ok {
		return fmt.Errorf("%w: billing received %s", event.ErrUnknownEventType, env.EventType)
	}

	charge := Charge{
		OrderID: oe.OrderID,
		Email:   oe.Email,
		Payment: oe.Billing.Payment,
		Amount:  oe.Billing.TotalPrice,
	}
	if err := b.gateway.Charge(ctx, charge); err != nil {
		return fmt.Errorf("charge order %s: %w", oe.OrderID, err)
	}

	b.logger.Info("charge initiated",
		"order_id", oe.OrderID,
		"amount", charge.Amount)
	return nil
}
