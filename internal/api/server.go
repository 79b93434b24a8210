package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mattjoyce/convrelay/internal/events"
	"github.com/mattjoyce/convrelay/internal/store"
)

// Config holds HTTP server configuration.
type Config struct {
	Listen string
	// AllowedOrigins is passed to the CORS layer for the polling frontend.
	AllowedOrigins []string
}

// Server binds the whole HTTP surface: health, retrieval reads over the
// record store, the live event stream, and the webhook ingestion handler
// mounted under /webhooks/elevenlabs (and at the root, which some sender
// configurations still use).
type Server struct {
	config Config
	store  store.Store
	ingest http.Handler
	events *events.Hub
	logger *slog.Logger
	server *http.Server
}

// New creates a new server instance. ingest and hub may be nil, which
// disables the webhook mount and the event stream respectively.
func New(config Config, st store.Store, ingest http.Handler, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config: config,
		store:  st,
		ingest: ingest,
		events: hub,
		logger: logger,
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// The event stream holds its response open; no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if len(s.config.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/conversations", s.handleListConversations)
	r.Get("/conversations/{id}", s.handleGetConversation)

	if s.events != nil {
		r.Get("/events", s.handleEvents)
	}

	if s.ingest != nil {
		r.Post("/webhooks/elevenlabs", s.ingest.ServeHTTP)
		r.Post("/", s.ingest.ServeHTTP)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}
