// Package queue provides the durable delivery channel between the event
// bus and asynchronous consumers: an at-least-once message queue with a
// visibility-timeout lease, bounded redelivery, and a dead-letter
// destination for messages that exhaust their budget.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// Message is one queued envelope plus its delivery bookkeeping.
// DeliveryCount is incremented on every receive, so a handler observing
// the message sees how many times it has been handed out.
type Message struct {
	ID              string
	Envelope        event.Envelope
	DeliveryCount   int
	FirstEnqueuedAt time.Time
}

// DeadLetter is a quarantined message retained for manual inspection.
// Dead letters are never auto-redelivered.
type DeadLetter struct {
	Message
	Reason         string
	DeadLetteredAt time.Time
}

// Options tunes queue behavior. Zero values take the defaults below.
type Options struct {
	// MaxReceiveCount is the number of failed deliveries before a message
	// moves to the dead-letter destination. Default: 3.
	MaxReceiveCount int

	// VisibilityTimeout is the lease a receive places on a message. A
	// message whose lease lapses without an ack becomes receivable again;
	// the lapsed claim counts as a failed delivery. Default: 5 minutes.
	VisibilityTimeout time.Duration

	// Retention bounds how long dead letters are kept. Default: 10 days.
	Retention time.Duration
}

// Default tuning, matching the production queue configuration.
const (
	DefaultMaxReceiveCount   = 3
	DefaultVisibilityTimeout = 5 * time.Minute
	DefaultRetention         = 10 * 24 * time.Hour
)

func (o Options) withDefaults() Options {
	if o.MaxReceiveCount <= 0 {
		o.MaxReceiveCount = DefaultMaxReceiveCount
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	return o
}

// Queue is a durable at-least-once message queue.
// Implementations must be safe for concurrent use.
type Queue interface {
	// Enqueue appends an envelope as a fresh message.
	Enqueue(ctx context.Context, env event.Envelope) error

	// Receive claims up to max messages, oldest first. Each claim places
	// a visibility lease and increments the message's delivery count. A
	// message that already spent its delivery budget is moved to the
	// dead-letter destination instead of being returned.
	Receive(ctx context.Context, max int) ([]Message, error)

	// Ack removes a delivered message. An acked message is never
	// redelivered.
	Ack(ctx context.Context, id string) error

	// Nack releases a claimed message after a failed delivery. The
	// message becomes immediately receivable again, or moves to the
	// dead-letter destination once its delivery budget is spent; the
	// returned bool reports the latter.
	Nack(ctx context.Context, id string, reason string) (deadLettered bool, err error)

	// DeadLetter force-quarantines a claimed message, bypassing the
	// remaining redelivery budget. Used for permanently undeliverable
	// payloads.
	DeadLetter(ctx context.Context, id string, reason string) error

	// Len returns the number of live (non-dead-lettered) messages.
	Len(ctx context.Context) (int, error)

	// DeadLetters lists quarantined messages still within retention.
	DeadLetters(ctx context.Context) ([]DeadLetter, error)

	// Close releases queue resources.
	Close() error
}

// Sentinel errors for queue operations.
var (
	// ErrQueueClosed indicates an operation on a closed queue.
	ErrQueueClosed = errors.New("queue closed")

	// ErrMessageNotFound indicates an ack/nack for a message the queue no
	// longer holds.
	ErrMessageNotFound = errors.New("message not found")
)
