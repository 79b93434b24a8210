package queue

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDead      Status = "dead"
)

// Task kinds dispatched by the worker.
const (
	KindAnalyzeTranscription = "analyze_transcription"
)

// Task is one unit of out-of-band processing. Tasks carry the verbatim
// webhook payload so processors never depend on the record store.
type Task struct {
	ID          string
	Kind        string
	Payload     json.RawMessage
	Status      Status
	Attempt     int
	MaxAttempts int
	Source      string
	DedupeKey   *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	NextRetryAt *time.Time
	LastError   *string
}

type EnqueueRequest struct {
	Kind        string
	Payload     json.RawMessage
	MaxAttempts int
	Source      string
	DedupeKey   *string
}

var ErrTaskNotFound = errors.New("task not found")
