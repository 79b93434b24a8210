// Package analysis implements the out-of-band transcript processor. It runs
// from the task queue, never in the webhook request path, and is idempotent:
// re-running a task overwrites the same sidecar.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/convrelay/internal/queue"
	"github.com/mattjoyce/convrelay/internal/store"
)

// Report is the analysis sidecar written for one transcription payload.
type Report struct {
	ConversationID   string         `json:"conversation_id"`
	EventTimestamp   int64          `json:"event_timestamp"`
	TurnCount        int            `json:"turn_count"`
	TurnsByRole      map[string]int `json:"turns_by_role"`
	WordCount        int            `json:"word_count"`
	CallDurationSecs float64        `json:"call_duration_secs,omitempty"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Analyzer computes transcript statistics and writes them as JSON sidecars
// into its own directory, away from the record namespace.
type Analyzer struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New creates the analysis directory (idempotently) and returns an analyzer.
func New(dir string, logger *slog.Logger) (*Analyzer, error) {
	if dir == "" {
		return nil, fmt.Errorf("analysis directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve analysis directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create analysis directory: %w", err)
	}
	return &Analyzer{dir: abs, logger: logger, now: time.Now}, nil
}

type transcriptionPayload struct {
	Type           string `json:"type"`
	EventTimestamp int64  `json:"event_timestamp"`
	Data           struct {
		ConversationID string `json:"conversation_id"`
		Transcript     []struct {
			Role           string  `json:"role"`
			Message        string  `json:"message"`
			TimeInCallSecs float64 `json:"time_in_call_secs"`
		} `json:"transcript"`
		Metadata struct {
			CallDurationSecs float64 `json:"call_duration_secs"`
		} `json:"metadata"`
	} `json:"data"`
}

// Process implements queue.Processor for analyze_transcription tasks.
func (a *Analyzer) Process(ctx context.Context, task *queue.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var p transcriptionPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return fmt.Errorf("parse transcription payload: %w", err)
	}

	report := a.analyze(&p)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	name := strconv.FormatInt(report.EventTimestamp, 10) + "_" + store.SanitizeID(report.ConversationID) + ".analysis.json"
	if err := a.writeAtomic(name, data); err != nil {
		return err
	}

	a.logger.Info("wrote transcript analysis",
		"conversation_id", report.ConversationID,
		"turns", report.TurnCount,
		"words", report.WordCount,
	)
	return nil
}

func (a *Analyzer) analyze(p *transcriptionPayload) Report {
	report := Report{
		ConversationID:   p.Data.ConversationID,
		EventTimestamp:   p.EventTimestamp,
		TurnsByRole:      make(map[string]int),
		CallDurationSecs: p.Data.Metadata.CallDurationSecs,
		GeneratedAt:      a.now().UTC(),
	}
	if report.ConversationID == "" {
		report.ConversationID = store.NoConversationID
	}

	var lastTime float64
	for _, turn := range p.Data.Transcript {
		report.TurnCount++
		report.TurnsByRole[turn.Role]++
		report.WordCount += len(strings.Fields(turn.Message))
		if turn.TimeInCallSecs > lastTime {
			lastTime = turn.TimeInCallSecs
		}
	}
	if report.CallDurationSecs == 0 {
		report.CallDurationSecs = lastTime
	}
	return report
}

func (a *Analyzer) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(a.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(a.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish report %s: %w", name, err)
	}
	return nil
}
