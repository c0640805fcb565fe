// Package api implements the prlens HTTP API: job submission, status and
// result queries, and a WebSocket feed for watching a job.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sprite-ai/prlens/internal/jobs"
)

// Jobs is the job surface the API serves.
type Jobs interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (string, error)
	Status(ctx context.Context, id string) (*jobs.StatusView, error)
	Result(ctx context.Context, id string) (*jobs.ResultView, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithWatchInterval sets how often a WebSocket watcher polls job status.
func WithWatchInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.watchInterval = d
		}
	}
}

// WithVersion sets the version reported by the root endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server is the prlens HTTP API server.
type Server struct {
	addr          string
	jobs          Jobs
	health        Pinger
	router        chi.Router
	server        *http.Server
	watchInterval time.Duration
	version       string
}

// New creates a new API server. health may be nil, in which case /health
// only reports the process as up.
func New(addr string, j Jobs, health Pinger, opts ...Option) *Server {
	s := &Server{
		addr:          addr,
		jobs:          j,
		health:        health,
		watchInterval: time.Second,
		version:       "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(loggingMiddleware)
	s.router.Use(recoveryMiddleware)
	s.router.Use(corsMiddleware)
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/analyze-pr", s.handleAnalyze)
	s.router.Get("/status/{task_id}", s.handleStatus)
	s.router.Get("/results/{task_id}", s.handleResults)
	s.router.Get("/ws/{task_id}", s.handleWatch)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "prlens API server listening", "addr", s.addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
