package webhook

import (
	"context"

	"github.com/mattjoyce/convrelay/internal/queue"
)

// Payload types the relay routes on. Anything else is persisted for
// diagnostics but acknowledged as ignored.
const (
	TypeTranscription = "post_call_transcription"
	TypeAudio         = "post_call_audio"
)

// Header names used by the sender. The signature header may carry the
// combined "t=<ts>,v0=<hex>" form, in which case the timestamp header is
// redundant.
const (
	SignatureHeader = "ElevenLabs-Signature"
	TimestampHeader = "ElevenLabs-Timestamp"
)

// TaskQueuer defines the interface for enqueueing out-of-band processing.
type TaskQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error)
}

// AudioSaver persists decoded call recordings beside the records.
type AudioSaver interface {
	SaveAudio(ctx context.Context, conversationID string, audio []byte) (string, error)
}

// EventPublisher broadcasts ingest events to live subscribers.
type EventPublisher interface {
	Publish(eventType string, data any)
}

// Config holds ingestion handler configuration.
type Config struct {
	// Secret is the shared HMAC secret. Empty means ingestion is not
	// configured; requests get 500.
	Secret string

	// MaxSkewSeconds is the allowed |now - signed timestamp| window.
	MaxSkewSeconds int

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64

	// TaskMaxAttempts is carried into enqueued analysis tasks; zero lets
	// the queue apply its own default.
	TaskMaxAttempts int
}

// AckResponse acknowledges a persisted known-type payload.
type AckResponse struct {
	OK bool `json:"ok"`
}

// IgnoredResponse acknowledges a persisted unknown-type payload, distinct
// from success so the caller can spot routing issues without retrying.
type IgnoredResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Event types published on ingest.
const (
	EventStored  = "payload.stored"
	EventIgnored = "payload.ignored"
)

// StoredEvent is the event hub payload for an ingested record.
type StoredEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	EventTimestamp int64  `json:"event_timestamp"`
}

// DefaultMaxBodySize bounds request bodies when the config leaves it unset.
// Audio payloads arrive base64-encoded inline, so this is generous.
const DefaultMaxBodySize = 16 * 1024 * 1024
