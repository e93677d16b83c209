package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// SQLiteStore persists audit entries to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (or creates) an event log at path. Use ":memory:"
// for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS event_log (
			partition_key TEXT NOT NULL,
			sort_key TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			request_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			info TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (partition_key, sort_key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create event log table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_event_log_email
		ON event_log(email, event_type)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create email index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store. The composite primary key makes replayed
// events overwrite in place.
func (s *SQLiteStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	info, err := json.Marshal(entry.Info)
	if err != nil {
		return fmt.Errorf("marshal entry info: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event_log (partition_key, sort_key, email, created_at, request_id, event_type, info, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(partition_key, sort_key) DO UPDATE SET
			email = excluded.email,
			created_at = excluded.created_at,
			request_id = excluded.request_id,
			event_type = excluded.event_type,
			info = excluded.info,
			expires_at = excluded.expires_at
	`, entry.PartitionKey, entry.SortKey, entry.Email, entry.CreatedAt,
		entry.RequestID, string(entry.EventType), info, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// BySubject implements Store.
func (s *SQLiteStore) BySubject(ctx context.Context, partitionKey string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT partition_key, sort_key, email, created_at, request_id, event_type, info, expires_at
		FROM event_log
		WHERE partition_key = ? AND expires_at > ?
		ORDER BY sort_key
	`, partitionKey, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("query by subject: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByEmail implements Store.
func (s *SQLiteStore) ByEmail(ctx context.Context, email string, eventType event.Type) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT partition_key, sort_key, email, created_at, request_id, event_type, info, expires_at
		FROM event_log
		WHERE email = ? AND expires_at > ?
	`
	args := []any{email, time.Now().Unix()}
	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(eventType))
	}
	query += " ORDER BY partition_key, sort_key"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by email: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM event_log WHERE expires_at <= ?
	`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged entries: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			entry     Entry
			eventType string
			info      []byte
		)
		if err := rows.Scan(&entry.PartitionKey, &entry.SortKey, &entry.Email,
			&entry.CreatedAt, &entry.RequestID, &eventType, &info, &entry.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.EventType = event.Type(eventType)
		if err := json.Unmarshal(info, &entry.Info); err != nil {
			return nil, fmt.Errorf("unmarshal entry info: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
