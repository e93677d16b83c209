// Package eventlog provides the append-only audit log of pipeline
// events. Entries carry a composite key (partition key per subject,
// sort key per event type and timestamp) supporting range queries by
// subject, event type, and time, and expire a fixed interval after
// creation.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// TTL is how long an entry lives after creation.
const TTL = 5 * time.Minute

// Entry is one persisted audit record. (PartitionKey, SortKey) is the
// idempotency key: both derive deterministically from the subject, the
// event type, and the event's original timestamp, so appending the same
// logical event twice overwrites instead of duplicating.
type Entry struct {
	PartitionKey string     `json:"partitionKey"`
	SortKey      string     `json:"sortKey"`
	Email        string     `json:"email"`
	CreatedAt    int64      `json:"createdAt"`
	RequestID    string     `json:"requestId"`
	EventType    event.Type `json:"eventType"`
	Info         Info       `json:"info"`
	ExpiresAt    int64      `json:"expiresAt"`
}

// Info carries the subject-specific detail of an entry.
type Info struct {
	SubjectID string          `json:"subjectId"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt <= now.Unix()
}

// PartitionKey builds the composite partition key for a subject, e.g.
// PartitionKey("product", "P1") == "#product_P1".
func PartitionKey(subject, code string) string {
	return fmt.Sprintf("#%s_%s", subject, code)
}

// SortKey builds the lexicographically time-ordered sort key for an
// event type at a timestamp in unix milliseconds.
func SortKey(eventType event.Type, timestampMillis int64) string {
	return fmt.Sprintf("%s#%d", eventType, timestampMillis)
}

// NewEntry assembles an entry whose key derives from (subject, code,
// eventType, occurredAt). createdAt and the expiry both follow the
// event's original timestamp, so a replayed event lands on the same key.
func NewEntry(subject, code string, eventType event.Type, occurredAt int64, email, requestID string, info Info) Entry {
	return Entry{
		PartitionKey: PartitionKey(subject, code),
		SortKey:      SortKey(eventType, occurredAt),
		Email:        email,
		CreatedAt:    occurredAt,
		RequestID:    requestID,
		EventType:    eventType,
		Info:         info,
		ExpiresAt:    occurredAt/1000 + int64(TTL/time.Second),
	}
}

// Store persists audit entries. Implementations must be safe for
// concurrent use and must never return expired entries from queries.
type Store interface {
	// Append upserts an entry on its (PartitionKey, SortKey).
	Append(ctx context.Context, entry Entry) error

	// BySubject returns live entries for one partition key, ordered by
	// sort key.
	BySubject(ctx context.Context, partitionKey string) ([]Entry, error)

	// ByEmail returns live entries for an email, optionally narrowed to
	// one event type, ordered by sort key within each partition.
	ByEmail(ctx context.Context, email string, eventType event.Type) ([]Entry, error)

	// Purge removes entries expired at now and reports how many.
	Purge(ctx context.Context, now time.Time) (int, error)

	// Close releases store resources.
	Close() error
}

// ErrStoreClosed indicates an operation on a closed store.
var ErrStoreClosed = errors.New("event log store closed")
