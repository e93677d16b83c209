package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/queue"
)

// Email is one outbound message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers emails. Implementations wrap a real provider; tests
// use a recording fake.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer is a Mailer that writes the email to the log instead of
// sending it. It is the default when no provider is configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(ctx context.Context, email Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email (not sent, log only)",
		"to", email.To,
		"subject", email.Subject)
	return nil
}

// OrderEmailer consumes ORDER_CREATED batches from the durable queue and
// sends one confirmation per message. Failures are per message; one bad
// send never fails its batch siblings.
type OrderEmailer struct {
	registry *event.Registry
	mailer   Mailer
	logger   *slog.Logger
}

// NewOrderEmailer wires an emailer over the given mailer.
func NewOrderEmailer(registry *event.Registry, mailer Mailer, logger *slog.Logger) *OrderEmailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderEmailer{registry: registry, mailer: mailer, logger: logger}
}

// HandleBatch implements queue.BatchHandler.
func (e *OrderEmailer) HandleBatch(ctx context.Context, batch []queue.Message) []error {
	verdicts := make([]error, len(batch))
	for i, msg := range batch {
		verdicts[i] = e.handle(ctx, msg)
	}
	return verdicts
}

func (e *OrderEmailer) handle(ctx context.Context, msg queue.Message) error {
	payload, err := e.registry.Decode(msg.Envelope)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	oe, ok := payload.(*event.OrderEvent)
	if !ok {
		return fmt.Errorf("%w: emailer received %s", event.ErrUnknownEventType, msg.Envelope.EventType)
	}

	if err := e.mailer.Send(ctx, ConfirmationEmail(oe)); err != nil {
		return fmt.Errorf("send confirmation for %s: %w", oe.OrderID, err)
	}

	e.logger.Info("order confirmation sent",
		"order_id", oe.OrderID,
		"email", oe.Email,
		"delivery_count", msg.DeliveryCount)
	return nil
}

// ConfirmationEmail renders the confirmation for one order event.
func ConfirmationEmail(oe *event.OrderEvent) Email {
	var body strings.Builder
	fmt.Fprintf(&body, "Thank you for your order %s.\n\n", oe.OrderID)
	fmt.Fprintf(&body, "Items: %s\n", strings.Join(oe.ProductCodes, ", "))
	fmt.Fprintf(&body, "Total: %.2f paid by %s\n", oe.Billing.TotalPrice, oe.Billing.Payment)
	fmt.Fprintf(&body, "Shipping: %s via %s\n", oe.Shipping.Type, oe.Shipping.Carrier)

	return Email{
		To:      oe.Email,
		Subject: fmt.Sprintf("Order confirmation %s", oe.OrderID),
		Body:    body.String(),
	}
}
