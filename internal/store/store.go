package store

import (
	"context"
	"encoding/json"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/mattjoyce/convrelay/internal/store Store

// ErrNotFound is returned by GetByID when no record matches.
var ErrNotFound = errors.New("conversation not found")

// Store persists inbound webhook payloads as immutable records and serves
// newest-first reads over them. Implementations must tolerate concurrent
// Save and read calls without external locking.
type Store interface {
	// Save writes one payload verbatim under its derived record name.
	// Records are never updated; a conversation with multiple events
	// yields multiple records.
	Save(ctx context.Context, payload json.RawMessage) error

	// ListLatest returns up to limit payloads, newest first. Records that
	// fail to parse are skipped, never fatal.
	ListLatest(ctx context.Context, limit int) ([]json.RawMessage, error)

	// GetByID returns the newest payload for the given conversation id,
	// or ErrNotFound.
	GetByID(ctx context.Context, conversationID string) (json.RawMessage, error)
}

// DefaultListLimit bounds ListLatest when callers pass limit <= 0.
const DefaultListLimit = 100
