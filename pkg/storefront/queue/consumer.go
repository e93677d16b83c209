package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/observability"
)

// errNoVerdict settles messages the handler left unresolved, typically
// after a HandlerTimeout termination or a short verdict slice. It is
// transient, so the message stays eligible for redelivery.
var errNoVerdict = errors.New("handler returned no verdict")

// BatchHandler processes an ordered batch of messages and reports a
// per-message verdict: the returned slice is positional, nil meaning
// success. There is no batch-level verdict; one item's failure must not
// roll back its siblings.
type BatchHandler interface {
	HandleBatch(ctx context.Context, batch []Message) []error
}

// BatchHandlerFunc adapts a function to the BatchHandler interface.
type BatchHandlerFunc func(ctx context.Context, batch []Message) []error

// HandleBatch implements BatchHandler.
func (f BatchHandlerFunc) HandleBatch(ctx context.Context, batch []Message) []error {
	return f(ctx, batch)
}

// ConsumerConfig configures the batching consumer.
type ConsumerConfig struct {
	// BatchSize caps how many messages one dispatch carries. Default: 5.
	BatchSize int

	// MaxBatchingWindow bounds how long a non-full batch waits, measured
	// from the claim of its oldest member. Default: 60 seconds.
	MaxBatchingWindow time.Duration

	// PollInterval is how often the consumer polls the queue. Default: 1s.
	PollInterval time.Duration

	// HandlerTimeout bounds one batch dispatch. A handler terminated by
	// the timeout counts as a failed delivery for every unresolved
	// message. Default: 30 seconds.
	HandlerTimeout time.Duration

	// OnAck is called after a message is acked.
	OnAck func(msg Message)

	// OnRetry is called when a failed message is released for redelivery.
	OnRetry func(msg Message, err error)

	// OnDeadLetter is called when a message is quarantined.
	OnDeadLetter func(msg Message, err error)

	// Spans traces each batch dispatch when set.
	Spans observability.SpanManager
}

// DefaultConsumerConfig provides the production tuning.
var DefaultConsumerConfig = ConsumerConfig{
	BatchSize:         5,
	MaxBatchingWindow: 60 * time.Second,
	PollInterval:      1 * time.Second,
	HandlerTimeout:    30 * time.Second,
}

// Consumer drains a queue in batches and feeds them to a BatchHandler,
// acking successes and releasing failures for bounded redelivery.
// Messages carrying a permanently undecodable payload skip the retry
// budget and go straight to quarantine.
type Consumer struct {
	queue   Queue
	handler BatchHandler
	cfg     ConsumerConfig

	mu           sync.Mutex
	pending      []Message
	firstClaimed time.Time
	running      bool
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewConsumer creates a consumer over q dispatching to handler.
func NewConsumer(q Queue, handler BatchHandler, cfg ConsumerConfig) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConsumerConfig.BatchSize
	}
	if cfg.MaxBatchingWindow <= 0 {
		cfg.MaxBatchingWindow = DefaultConsumerConfig.MaxBatchingWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConsumerConfig.PollInterval
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultConsumerConfig.HandlerTimeout
	}

	return &Consumer{
		queue:   q,
		handler: handler,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the poll loop.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)
}

// Stop halts the poll loop and waits for it to exit.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			_ = c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single poll step: claim up to the batch headroom,
// then dispatch if the batch filled or the batching window elapsed since
// its oldest member was claimed. Exported so callers can drive the
// consumer deterministically; safe concurrently with a running Start
// loop.
func (c *Consumer) RunOnce(ctx context.Context) error {
	batch, err := c.claim(ctx)
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		c.dispatch(ctx, batch)
	}
	return nil
}

// claim pulls messages into the pending batch under the lock and pops
// the batch once it fills or its window elapses.
func (c *Consumer) claim(ctx context.Context) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) < c.cfg.BatchSize {
		msgs, err := c.queue.Receive(ctx, c.cfg.BatchSize-len(c.pending))
		if err != nil {
			return nil, err
		}
		if len(c.pending) == 0 && len(msgs) > 0 {
			c.firstClaimed = time.Now()
		}
		c.pending = append(c.pending, msgs...)
	}

	if len(c.pending) == 0 {
		return nil, nil
	}

	full := len(c.pending) >= c.cfg.BatchSize
	windowElapsed := time.Since(c.firstClaimed) >= c.cfg.MaxBatchingWindow
	if !full && !windowElapsed {
		return nil, nil
	}

	batch := c.pending
	c.pending = nil
	return batch, nil
}

// dispatch hands one batch to the handler and settles each message on
// its own verdict.
func (c *Consumer) dispatch(ctx context.Context, batch []Message) {
	if c.cfg.Spans != nil {
		var span trace.Span
		ctx, span = c.cfg.Spans.StartConsumeSpan(ctx, len(batch))
		defer func() { c.cfg.Spans.EndSpanWithError(span, nil) }()
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	errs := c.handler.HandleBatch(hctx, batch)
	cancel()

	for i, msg := range batch {
		err := errNoVerdict
		if i < len(errs) {
			err = errs[i]
		}
		c.settle(ctx, msg, err)
	}
}

func (c *Consumer) settle(ctx context.Context, msg Message, err error) {
	if err == nil {
		if ackErr := c.queue.Ack(ctx, msg.ID); ackErr != nil {
			return
		}
		if c.cfg.OnAck != nil {
			c.cfg.OnAck(msg)
		}
		return
	}

	if event.IsPermanent(err) {
		if dlErr := c.queue.DeadLetter(ctx, msg.ID, err.Error()); dlErr != nil {
			return
		}
		if c.cfg.OnDeadLetter != nil {
			c.cfg.OnDeadLetter(msg, err)
		}
		return
	}

	deadLettered, nackErr := c.queue.Nack(ctx, msg.ID, err.Error())
	if nackErr != nil {
		return
	}
	if deadLettered {
		if c.cfg.OnDeadLetter != nil {
			c.cfg.OnDeadLetter(msg, err)
		}
		return
	}
	if c.cfg.OnRetry != nil {
		c.cfg.OnRetry(msg, err)
	}
}
