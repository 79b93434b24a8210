package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used in tests and anywhere durability is
// not needed. It derives the same record names as FileStore so ordering and
// matching behave identically.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
	now     func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]json.RawMessage),
		now:     time.Now,
	}
}

// Save stores payload under its derived record name, last write wins.
func (s *MemStore) Save(ctx context.Context, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := RecordName(ExtractMeta(payload, s.now))
	cp := make(json.RawMessage, len(payload))
	copy(cp, payload)

	s.mu.Lock()
	s.records[name] = cp
	s.mu.Unlock()
	return nil
}

// ListLatest returns up to limit payloads, newest first.
func (s *MemStore) ListLatest(ctx context.Context, limit int) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.sortedNamesLocked()
	if len(names) > limit {
		names = names[:limit]
	}

	items := make([]json.RawMessage, 0, len(names))
	for _, name := range names {
		items = append(items, s.records[name])
	}
	return items, nil
}

// GetByID returns the newest payload for the conversation id, or ErrNotFound.
func (s *MemStore) GetByID(ctx context.Context, conversationID string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	safe := SanitizeID(conversationID)
	for _, name := range s.sortedNamesLocked() {
		if matchesConversation(name, safe) {
			return s.records[name], nil
		}
	}
	return nil, ErrNotFound
}

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemStore) sortedNamesLocked() []string {
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}
