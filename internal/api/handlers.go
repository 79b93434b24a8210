package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/convrelay/internal/store"
)

// handleHealth reports liveness. It stays available even when ingestion is
// unconfigured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{OK: true})
}

// handleListConversations returns the newest records, fixed page size,
// recomputed fresh on every call.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListLatest(r.Context(), ListPageSize)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	s.respondJSON(w, http.StatusOK, ListResponse{Items: items})
}

// handleGetConversation returns the newest record for one conversation id.
// No match is a normal outcome, surfaced as 404.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payload, err := s.store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get conversation", "conversation_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
