package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/awsomestore/storefront/pkg/storefront/observability"
)

// PushHandler processes an envelope delivered inline during publish.
type PushHandler interface {
	Handle(ctx context.Context, env Envelope) error
}

// PushHandlerFunc adapts a function to the PushHandler interface.
type PushHandlerFunc func(ctx context.Context, env Envelope) error

// Handle implements PushHandler.
func (f PushHandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Enqueuer is the queue side of a subscription: a durable destination
// the bus hands matching envelopes to, fire-and-forget.
type Enqueuer interface {
	Enqueue(ctx context.Context, env Envelope) error
}

// Filter is an allow-list predicate over event types.
// The zero value matches every event type.
type Filter struct {
	allowed map[Type]struct{}
}

// NewFilter builds a filter matching exactly the given event types.
// No arguments yields the match-all filter.
func NewFilter(types ...Type) Filter {
	if len(types) == 0 {
		return Filter{}
	}
	allowed := make(map[Type]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return Filter{allowed: allowed}
}

// Matches reports whether the filter admits the event type.
func (f Filter) Matches(t Type) bool {
	if f.allowed == nil {
		return true
	}
	_, ok := f.allowed[t]
	return ok
}

// SubscriptionID identifies a bus subscription.
type SubscriptionID string

// Receipt summarizes a publish: how many dispatch attempts were issued,
// not how they turned out. Delivery failures are an operational concern,
// never a publisher-visible error.
type Receipt struct {
	MessageID      string
	PushDispatched int
	QueueEnqueued  int
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// DispatchTimeout bounds each push handler invocation.
	// Default: 4 seconds.
	DispatchTimeout time.Duration

	// OnPushError is called when a push handler fails. The failure is
	// isolated to that subscriber; publish continues.
	OnPushError func(env Envelope, id SubscriptionID, err error)

	// OnEnqueueError is called when a queue enqueue fails. Enqueue is
	// fire-and-forget from the publisher's perspective.
	OnEnqueueError func(env Envelope, id SubscriptionID, err error)

	// OnPublish is called after every publish with its receipt.
	OnPublish func(env Envelope, receipt Receipt)

	// Spans traces each publish fan-out when set.
	Spans observability.SpanManager
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	DispatchTimeout: 4 * time.Second,
}

type subscriptionKind int

const (
	pushSubscription subscriptionKind = iota
	queueSubscription
)

type subscription struct {
	id      SubscriptionID
	kind    subscriptionKind
	filter  Filter
	handler PushHandler
	queue   Enqueuer
}

// Bus fans published envelopes out to push and queue subscribers whose
// filter matches the envelope's event type. Push subscribers run inline
// in registration order; queue subscribers receive a durable enqueue.
// Safe for concurrent Publish/Subscribe/Unsubscribe.
type Bus struct {
	config BusConfig

	mu     sync.RWMutex
	subs   []*subscription
	closed atomic.Bool
}

// NewBus creates a bus.
func NewBus(config BusConfig) *Bus {
	if config.DispatchTimeout <= 0 {
		config.DispatchTimeout = DefaultBusConfig.DispatchTimeout
	}
	return &Bus{config: config}
}

// SubscribePush registers a handler invoked synchronously during publish
// for every matching envelope.
func (b *Bus) SubscribePush(filter Filter, handler PushHandler) SubscriptionID {
	return b.add(&subscription{kind: pushSubscription, filter: filter, handler: handler})
}

// SubscribeQueue registers a durable queue destination for every matching
// envelope.
func (b *Bus) SubscribeQueue(filter Filter, queue Enqueuer) SubscriptionID {
	return b.add(&subscription{kind: queueSubscription, filter: filter, queue: queue})
}

func (b *Bus) add(sub *subscription) SubscriptionID {
	sub.id = SubscriptionID(uuid.New().String())

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
	return sub.id
}

// Unsubscribe removes a subscription. Removing an unknown id is a no-op.
// An in-flight publish that already snapshotted the subscriber list may
// still deliver to the removed subscriber once.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish fans env out to every matching subscription. Push handlers run
// inline in registration order, each independently: one handler's failure
// is reported through OnPushError and never blocks the next subscriber or
// fails the publish. Queue destinations get a fire-and-forget enqueue.
// Publish succeeds once all dispatch attempts have been issued, even when
// nothing matches. env is never mutated.
func (b *Bus) Publish(ctx context.Context, env Envelope) (Receipt, error) {
	if b.closed.Load() {
		return Receipt{}, ErrBusClosed
	}

	if b.config.Spans != nil {
		var span trace.Span
		ctx, span = b.config.Spans.StartPublishSpan(ctx, string(env.EventType))
		defer func() { b.config.Spans.EndSpanWithError(span, nil) }()
	}

	// Snapshot so concurrent subscribe/unsubscribe cannot corrupt an
	// in-flight fan-out.
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	receipt := Receipt{MessageID: uuid.New().String()}

	for _, sub := range subs {
		if !sub.filter.Matches(env.EventType) {
			continue
		}

		switch sub.kind {
		case pushSubscription:
			receipt.PushDispatched++
			if err := b.dispatch(ctx, sub, env); err != nil {
				if b.config.OnPushError != nil {
					b.config.OnPushError(env, sub.id, err)
				}
			}
		case queueSubscription:
			receipt.QueueEnqueued++
			if err := sub.queue.Enqueue(ctx, env); err != nil {
				if b.config.OnEnqueueError != nil {
					b.config.OnEnqueueError(env, sub.id, err)
				}
			}
		}
	}

	if b.config.OnPublish != nil {
		b.config.OnPublish(env, receipt)
	}

	return receipt, nil
}

// dispatch runs one push handler under the configured timeout.
func (b *Bus) dispatch(ctx context.Context, sub *subscription, env Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.DispatchTimeout)
	defer cancel()
	return sub.handler.Handle(ctx, env)
}

// Len returns the number of current subscriptions. Useful for testing.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close marks the bus closed; further publishes fail with ErrBusClosed.
func (b *Bus) Close() error {
	b.closed.Store(true)
	return nil
}
