package eventlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // partition key -> sort key -> entry
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]Entry)}
}

// Append upserts the entry on its composite key.
func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	part, ok := s.entries[entry.PartitionKey]
	if !ok {
		part = make(map[string]Entry)
		s.entries[entry.PartitionKey] = part
	}
	part[entry.SortKey] = entry
	return nil
}

// BySubject returns live entries for a partition key ordered by sort key.
func (s *MemoryStore) BySubject(ctx context.Context, partitionKey string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	now := time.Now()
	var out []Entry
	for _, entry := range s.entries[partitionKey] {
		if entry.Expired(now) {
			continue
		}
		out = append(out, entry)
	}
	sortEntries(out)
	return out, nil
}

// ByEmail returns live entries for an email, optionally narrowed to one
// event type.
func (s *MemoryStore) ByEmail(ctx context.Context, email string, eventType event.Type) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	now := time.Now()
	var out []Entry
	for _, part := range s.entries {
		for _, entry := range part {
			if entry.Email != email || entry.Expired(now) {
				continue
			}
			if eventType != "" && entry.EventType != eventType {
				continue
			}
			out = append(out, entry)
		}
	}
	sortEntries(out)
	return out, nil
}

// Purge drops entries expired at now.
func (s *MemoryStore) Purge(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	removed := 0
	for pk, part := range s.entries {
		for sk, entry := range part {
			if entry.Expired(now) {
				delete(part, sk)
				removed++
			}
		}
		if len(part) == 0 {
			delete(s.entries, pk)
		}
	}
	return removed, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PartitionKey != entries[j].PartitionKey {
			return entries[i].PartitionKey < entries[j].PartitionKey
		}
		return entries[i].SortKey < entries[j].SortKey
	})
}
