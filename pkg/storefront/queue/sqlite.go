package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// SQLiteQueue persists messages to SQLite. It is the durable backing
// store for single-process production use; multiple execution units in
// the process share one queue through it.
type SQLiteQueue struct {
	db     *sql.DB
	opts   Options
	mu     sync.Mutex
	closed bool
}

// NewSQLiteQueue opens (or creates) a queue at path. Use ":memory:" for
// testing.
func NewSQLiteQueue(path string, opts Options) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS queue_messages (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			envelope TEXT NOT NULL,
			delivery_count INTEGER NOT NULL DEFAULT 0,
			enqueued_at INTEGER NOT NULL,
			in_flight INTEGER NOT NULL DEFAULT 0,
			visible_at INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS queue_dead_letters (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			envelope TEXT NOT NULL,
			delivery_count INTEGER NOT NULL,
			enqueued_at INTEGER NOT NULL,
			reason TEXT NOT NULL,
			dead_lettered_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create dead letters table: %w", err)
	}

	return &SQLiteQueue{db: db, opts: opts.withDefaults()}, nil
}

// Enqueue implements Queue.
func (q *SQLiteQueue) Enqueue(ctx context.Context, env event.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO queue_messages (id, event_type, envelope, enqueued_at)
		VALUES (?, ?, ?, ?)
	`, uuid.New().String(), string(env.EventType), raw, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	return nil
}

// Receive implements Queue.
func (q *SQLiteQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	now := time.Now().UnixMilli()
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, envelope, delivery_count, enqueued_at
		FROM queue_messages
		WHERE in_flight = 0 OR visible_at <= ?
		ORDER BY rowid
		LIMIT ?
	`, now, max)
	if err != nil {
		return nil, fmt.Errorf("select receivable: %w", err)
	}

	var candidates []Message
	for rows.Next() {
		var (
			msg        Message
			raw        []byte
			enqueuedAt int64
		)
		if err := rows.Scan(&msg.ID, &raw, &msg.DeliveryCount, &enqueuedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal(raw, &msg.Envelope); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		msg.FirstEnqueuedAt = time.UnixMilli(enqueuedAt).UTC()
		candidates = append(candidates, msg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receivable: %w", err)
	}

	claimed := make([]Message, 0, len(candidates))
	for _, msg := range candidates {
		if msg.DeliveryCount >= q.opts.MaxReceiveCount {
			// Budget already spent; the lapsed lease was the final attempt.
			if err := q.deadLetterByID(ctx, msg.ID, "delivery lease expired after final attempt"); err != nil {
				return nil, err
			}
			continue
		}

		msg.DeliveryCount++
		_, err := q.db.ExecContext(ctx, `
			UPDATE queue_messages
			SET in_flight = 1, visible_at = ?, delivery_count = delivery_count + 1
			WHERE id = ?
		`, time.Now().Add(q.opts.VisibilityTimeout).UnixMilli(), msg.ID)
		if err != nil {
			return nil, fmt.Errorf("claim message: %w", err)
		}
		claimed = append(claimed, msg)
	}

	return claimed, nil
}

// Ack implements Queue.
func (q *SQLiteQueue) Ack(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	res, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Nack implements Queue.
func (q *SQLiteQueue) Nack(ctx context.Context, id string, reason string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	var count int
	err := q.db.QueryRowContext(ctx, `
		SELECT delivery_count FROM queue_messages WHERE id = ?
	`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return false, ErrMessageNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load message: %w", err)
	}

	if count >= q.opts.MaxReceiveCount {
		if err := q.deadLetterByID(ctx, id, reason); err != nil {
			return false, err
		}
		return true, nil
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE queue_messages SET in_flight = 0, visible_at = 0 WHERE id = ?
	`, id)
	if err != nil {
		return false, fmt.Errorf("release message: %w", err)
	}
	return false, nil
}

// DeadLetter implements Queue.
func (q *SQLiteQueue) DeadLetter(ctx context.Context, id string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	return q.deadLetterByID(ctx, id, reason)
}

// Len implements Queue.
func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// DeadLetters implements Queue.
func (q *SQLiteQueue) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	cutoff := time.Now().Add(-q.opts.Retention).UnixMilli()
	if _, err := q.db.ExecContext(ctx, `
		DELETE FROM queue_dead_letters WHERE dead_lettered_at <= ?
	`, cutoff); err != nil {
		return nil, fmt.Errorf("purge dead letters: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, envelope, delivery_count, enqueued_at, reason, dead_lettered_at
		FROM queue_dead_letters
		ORDER BY dead_lettered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var (
			dl             DeadLetter
			raw            []byte
			enqueuedAt     int64
			deadLetteredAt int64
		)
		if err := rows.Scan(&dl.ID, &raw, &dl.DeliveryCount, &enqueuedAt, &dl.Reason, &deadLetteredAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(raw, &dl.Envelope); err != nil {
			return nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		dl.FirstEnqueuedAt = time.UnixMilli(enqueuedAt).UTC()
		dl.DeadLetteredAt = time.UnixMilli(deadLetteredAt).UTC()
		out = append(out, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

// Close implements Queue.
func (q *SQLiteQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	return q.db.Close()
}

// deadLetterByID moves one live message into quarantine. Caller holds q.mu.
func (q *SQLiteQueue) deadLetterByID(ctx context.Context, id string, reason string) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO queue_dead_letters
			(id, event_type, envelope, delivery_count, enqueued_at, reason, dead_lettered_at)
		SELECT id, event_type, envelope, delivery_count, enqueued_at, ?, ?
		FROM queue_messages WHERE id = ?
	`, reason, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("quarantine message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}

	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove quarantined message: %w", err)
	}
	return nil
}
