package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sprite-ai/prlens/internal/jobs"
	"github.com/sprite-ai/prlens/internal/model"
)

// --- Root ---

type rootResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service: "prlens",
		Version: s.version,
		Endpoints: map[string]string{
			"analyze": "POST /analyze-pr",
			"status":  "GET /status/{task_id}",
			"results": "GET /results/{task_id}",
			"watch":   "GET /ws/{task_id}",
			"health":  "GET /health",
		},
	})
}

// --- Health ---

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
}

// --- Analyze ---

type analyzeRequest struct {
	RepoURL     string `json:"repo_url"`
	PRNumber    int    `json:"pr_number"`
	GitHubToken string `json:"github_token,omitempty"`
}

type analyzeResponse struct {
	TaskID  string          `json:"task_id"`
	Status  model.JobStatus `json:"status"`
	Message string          `json:"message"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	id, err := s.jobs.Submit(r.Context(), jobs.SubmitRequest{
		RepoURL:    req.RepoURL,
		PRNumber:   req.PRNumber,
		Credential: strings.TrimSpace(req.GitHubToken),
	})
	if err != nil {
		writeJobError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		TaskID:  id,
		Status:  model.JobPending,
		Message: "Analysis task queued",
	})
}

// --- Status ---

type statusResponse struct {
	TaskID    string          `json:"task_id"`
	Status    model.JobStatus `json:"status"`
	Progress  string          `json:"progress,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func newStatusResponse(v *jobs.StatusView) statusResponse {
	return statusResponse{
		TaskID:    v.TaskID,
		Status:    v.Status,
		Progress:  v.Progress,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobs.Status(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(view))
}

// --- Results ---

type resultResponse struct {
	TaskID       string                `json:"task_id"`
	Status       model.JobStatus       `json:"status"`
	Results      *model.AnalysisResult `json:"results,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func newResultResponse(v *jobs.ResultView) resultResponse {
	return resultResponse{
		TaskID:       v.TaskID,
		Status:       v.Status,
		Results:      v.Results,
		ErrorMessage: v.ErrorMessage,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobs.Result(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(view))
}

// writeJobError maps job errors to HTTP statuses.
func writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, jobs.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
