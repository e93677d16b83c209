package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// MemoryQueue is an in-memory Queue for testing and single-instance
// deployments. Data is lost when the process exits.
type MemoryQueue struct {
	mu     sync.Mutex
	opts   Options
	live   []*storedMessage
	dead   []DeadLetter
	closed bool
}

// storedMessage tracks a live message with its claim state.
type storedMessage struct {
	msg       Message
	inFlight  bool
	visibleAt time.Time
}

// NewMemoryQueue creates an in-memory queue.
func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{opts: opts.withDefaults()}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, env event.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.live = append(q.live, &storedMessage{
		msg: Message{
			ID:              uuid.New().String(),
			Envelope:        env,
			FirstEnqueuedAt: time.Now().UTC(),
		},
	})
	return nil
}

// Receive implements Queue.
func (q *MemoryQueue) Receive(_ context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	now := time.Now().UTC()
	claimed := make([]Message, 0, max)
	kept := q.live[:0]

	for _, stored := range q.live {
		if len(claimed) >= max || (stored.inFlight && now.Before(stored.visibleAt)) {
			kept = append(kept, stored)
			continue
		}

		if stored.msg.DeliveryCount >= q.opts.MaxReceiveCount {
			// Budget already spent; the lapsed lease was the final attempt.
			q.deadLetterLocked(stored.msg, "delivery lease expired after final attempt", now)
			continue
		}

		stored.inFlight = true
		stored.visibleAt = now.Add(q.opts.VisibilityTimeout)
		stored.msg.DeliveryCount++
		claimed = append(claimed, stored.msg)
		kept = append(kept, stored)
	}

	q.live = kept
	return claimed, nil
}

// Ack implements Queue.
func (q *MemoryQueue) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, stored := range q.live {
		if stored.msg.ID == id {
			q.live = append(q.live[:i], q.live[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

// Nack implements Queue.
func (q *MemoryQueue) Nack(_ context.Context, id string, reason string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	for i, stored := range q.live {
		if stored.msg.ID != id {
			continue
		}

		if stored.msg.DeliveryCount >= q.opts.MaxReceiveCount {
			q.live = append(q.live[:i], q.live[i+1:]...)
			q.deadLetterLocked(stored.msg, reason, time.Now().UTC())
			return true, nil
		}

		stored.inFlight = false
		stored.visibleAt = time.Time{}
		return false, nil
	}
	return false, ErrMessageNotFound
}

// DeadLetter implements Queue.
func (q *MemoryQueue) DeadLetter(_ context.Context, id string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, stored := range q.live {
		if stored.msg.ID == id {
			q.live = append(q.live[:i], q.live[i+1:]...)
			q.deadLetterLocked(stored.msg, reason, time.Now().UTC())
			return nil
		}
	}
	return ErrMessageNotFound
}

// Len implements Queue.
func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.live), nil
}

// DeadLetters implements Queue.
func (q *MemoryQueue) DeadLetters(_ context.Context) ([]DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	q.purgeDeadLocked(time.Now().UTC())
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out, nil
}

// Close implements Queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.live = nil
	q.dead = nil
	return nil
}

// deadLetterLocked quarantines a message. Caller holds q.mu.
func (q *MemoryQueue) deadLetterLocked(msg Message, reason string, now time.Time) {
	q.dead = append(q.dead, DeadLetter{
		Message:        msg,
		Reason:         reason,
		DeadLetteredAt: now,
	})
}

// purgeDeadLocked drops dead letters past retention. Caller holds q.mu.
func (q *MemoryQueue) purgeDeadLocked(now time.Time) {
	cutoff := now.Add(-q.opts.Retention)
	kept := q.dead[:0]
	for _, dl := range q.dead {
		if dl.DeadLetteredAt.After(cutoff) {
			kept = append(kept, dl)
		}
	}
	q.dead = kept
}
