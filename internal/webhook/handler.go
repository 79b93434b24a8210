package webhook

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/mattjoyce/convrelay/internal/queue"
	"github.com/mattjoyce/convrelay/internal/store"
	"github.com/zeebo/blake3"
)

// Deps are the handler's collaborators. Store is required; the rest are
// optional and skipped when nil.
type Deps struct {
	Store  store.Store
	Audio  AudioSaver
	Tasks  TaskQueuer
	Events EventPublisher
}

// Handler ingests signed webhook calls: verify, parse, classify, store,
// acknowledge. It never performs heavy processing inline; transcription
// analysis is handed to the task queue and audio extraction is a quick
// best-effort decode.
type Handler struct {
	config   Config
	verifier *Verifier
	deps     Deps
	logger   *slog.Logger
}

// NewHandler creates an ingestion handler.
func NewHandler(config Config, deps Deps, logger *slog.Logger) *Handler {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Handler{
		config:   config,
		verifier: NewVerifier(config.Secret, config.MaxSkewSeconds),
		deps:     deps,
		logger:   logger,
	}
}

// ServeHTTP handles one inbound webhook POST.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The body must be read raw before any parsing: the signature is
	// computed over the exact bytes as sent.
	limitedReader := io.LimitReader(r.Body, h.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > h.config.MaxBodySize {
		h.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// A missing secret is a deployment error, not a client error.
	if h.config.Secret == "" {
		h.logger.Error("webhook secret not configured, rejecting request",
			"path", r.URL.Path,
		)
		h.respondError(w, http.StatusInternalServerError, "server configuration error")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	timestamp := r.Header.Get(TimestampHeader)
	if err := h.verifier.Verify(body, signature, timestamp); err != nil {
		h.logger.Warn("webhook signature verification failed",
			"path", r.URL.Path,
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !json.Valid(body) {
		h.respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	meta := store.ExtractMeta(body, nil)
	if err := h.deps.Store.Save(ctx, body); err != nil {
		h.logger.Error("failed to store payload",
			"type", meta.Type,
			"conversation_id", meta.ConversationID,
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, "failed to store payload")
		return
	}

	switch meta.Type {
	case TypeTranscription:
		h.enqueueAnalysis(r, body, meta)
		h.publish(EventStored, meta)
		h.logger.Info("stored transcription payload",
			"conversation_id", meta.ConversationID,
			"event_timestamp", meta.EventTimestamp,
		)
		h.respondJSON(w, http.StatusOK, AckResponse{OK: true})

	case TypeAudio:
		h.extractAudio(r, body, meta)
		h.publish(EventStored, meta)
		h.logger.Info("stored audio payload",
			"conversation_id", meta.ConversationID,
			"event_timestamp", meta.EventTimestamp,
		)
		h.respondJSON(w, http.StatusOK, AckResponse{OK: true})

	default:
		h.publish(EventIgnored, meta)
		h.logger.Warn("stored payload of unknown type",
			"type", meta.Type,
			"conversation_id", meta.ConversationID,
		)
		h.respondJSON(w, http.StatusAccepted, IgnoredResponse{
			Status: "ignored",
			Reason: "unknown_type",
		})
	}
}

// enqueueAnalysis hands a transcription to the task queue. Failures are
// logged and never affect the acknowledgment; the sender must not retry on
// our processing problems.
func (h *Handler) enqueueAnalysis(r *http.Request, body []byte, meta store.Meta) {
	if h.deps.Tasks == nil {
		return
	}

	// Dedupe on payload content so sender retries collapse to one task.
	sum := blake3.Sum256(body)
	dedupeKey := hex.EncodeToString(sum[:])

	taskID, err := h.deps.Tasks.Enqueue(r.Context(), queue.EnqueueRequest{
		Kind:        queue.KindAnalyzeTranscription,
		Payload:     json.RawMessage(body),
		MaxAttempts: h.config.TaskMaxAttempts,
		DedupeKey:   &dedupeKey,
		Source:      "webhook:" + r.URL.Path,
	})
	if err != nil {
		h.logger.Error("failed to enqueue analysis task",
			"conversation_id", meta.ConversationID,
			"error", err,
		)
		return
	}
	h.logger.Debug("analysis task enqueued",
		"task_id", taskID,
		"conversation_id", meta.ConversationID,
	)
}

// extractAudio decodes data.full_audio and writes it beside the records.
// Best effort: the verbatim payload is already persisted.
func (h *Handler) extractAudio(r *http.Request, body []byte, meta store.Meta) {
	if h.deps.Audio == nil {
		return
	}

	var env struct {
		Data struct {
			FullAudio string `json:"full_audio"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Data.FullAudio == "" {
		return
	}

	audio, err := base64.StdEncoding.DecodeString(env.Data.FullAudio)
	if err != nil {
		h.logger.Warn("failed to decode full_audio",
			"conversation_id", meta.ConversationID,
			"error", err,
		)
		return
	}

	path, err := h.deps.Audio.SaveAudio(r.Context(), meta.ConversationID, audio)
	if err != nil {
		h.logger.Warn("failed to save audio sidecar",
			"conversation_id", meta.ConversationID,
			"error", err,
		)
		return
	}
	h.logger.Info("saved audio sidecar",
		"conversation_id", meta.ConversationID,
		"path", path,
	)
}

func (h *Handler) publish(eventType string, meta store.Meta) {
	if h.deps.Events == nil {
		return
	}
	h.deps.Events.Publish(eventType, StoredEvent{
		Type:           meta.Type,
		ConversationID: meta.ConversationID,
		EventTimestamp: meta.EventTimestamp,
	})
}

// respondJSON sends a JSON response.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
