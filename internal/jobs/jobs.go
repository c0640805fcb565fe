// Package jobs owns the analysis job lifecycle: submission, execution by
// workers, status queries and retention.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sprite-ai/prlens/internal/fetch"
	"github.com/sprite-ai/prlens/internal/logger"
	"github.com/sprite-ai/prlens/internal/model"
	"github.com/sprite-ai/prlens/internal/queue"
	"github.com/sprite-ai/prlens/internal/review"
	"github.com/sprite-ai/prlens/internal/store"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = fmt.Errorf("task not found: %w", store.ErrNotFound)
)

// Progress labels set by the orchestrator around the review's own stages.
const (
	ProgressInitializing = "initializing"
	ProgressFinalizing   = "finalizing"
)

const DefaultTimeout = 30 * time.Minute

// FetcherFactory builds a Fetcher for one job.
type FetcherFactory interface {
	// Supports returns an error when no Fetcher can serve repo.
	Supports(repo fetch.Repo) error
	For(repo fetch.Repo, credential string) (fetch.Fetcher, error)
}

// Enqueuer is the producer half of a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

type Options struct {
	Timeout         time.Duration // hard limit on one job's execution
	FileConcurrency int
}

// Orchestrator creates jobs, runs them and answers status queries. Only the
// worker executing a job mutates it after creation.
type Orchestrator struct {
	store    store.Store
	queue    Enqueuer
	fetchers FetcherFactory
	opts     Options
	newID    func() string
}

func NewOrchestrator(s store.Store, q Enqueuer, f FetcherFactory, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Orchestrator{
		store:    s,
		queue:    q,
		fetchers: f,
		opts:     opts,
		newID:    uuid.NewString,
	}
}

// SubmitRequest asks for a review of one pull request.
type SubmitRequest struct {
	RepoURL    string
	PRNumber   int
	Credential string // optional access token overriding the configured one
}

// StatusView is the read model for a job's progress.
type StatusView struct {
	TaskID    string
	Status    model.JobStatus
	Progress  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResultView is the read model for a job's outcome. Results is set only for
// completed jobs and ErrorMessage only for failed ones.
type ResultView struct {
	TaskID       string
	Status       model.JobStatus
	Results      *model.AnalysisResult
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Submit validates req, records a pending job and enqueues it. Invalid input
// returns ErrInvalidInput without creating a record. If the task cannot be
// enqueued the job is marked failed and the error returned.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	repoURL := strings.TrimSpace(req.RepoURL)
	repo, err := fetch.ParseRepo(repoURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := o.fetchers.Supports(repo); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.PRNumber <= 0 {
		return "", fmt.Errorf("%w: pr_number must be positive", ErrInvalidInput)
	}

	job := &model.Job{
		ID:       o.newID(),
		Repo:     repoURL,
		PRNumber: req.PRNumber,
		Status:   model.JobPending,
	}
	if err := o.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: job.ID, Repo: repo.String(), PRNumber: req.PRNumber})

	task := queue.Task{JobID: job.ID, Credential: req.Credential}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		task.TraceID = sc.TraceID().String()
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		msg := fmt.Sprintf("failed to enqueue: %v", err)
		if _, terr := o.store.Transition(context.WithoutCancel(ctx), job.ID, model.JobFailed, store.Update{ErrorMessage: msg}); terr != nil {
			slog.ErrorContext(ctx, "marking unqueued job failed", "error", terr)
		}
		return "", fmt.Errorf("enqueueing job: %w", err)
	}

	slog.InfoContext(ctx, "job submitted")
	return job.ID, nil
}

// Status returns the current state of job id.
func (o *Orchestrator) Status(ctx context.Context, id string) (*StatusView, error) {
	job, err := o.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		TaskID:    job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}, nil
}

// Result returns the outcome of job id, decoding the stored report when the
// job completed.
func (o *Orchestrator) Result(ctx context.Context, id string) (*ResultView, error) {
	job, err := o.get(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &ResultView{
		TaskID:    job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	switch job.Status {
	case model.JobCompleted:
		var res model.AnalysisResult
		if err := json.Unmarshal(job.Result, &res); err != nil {
			return nil, fmt.Errorf("decoding result of %s: %w", id, err)
		}
		if res.Files == nil {
			res.Files = []model.FileReport{}
		}
		view.Results = &res
	case model.JobFailed:
		view.ErrorMessage = job.ErrorMessage
	}
	return view, nil
}

func (o *Orchestrator) get(ctx context.Context, id string) (*model.Job, error) {
	job, err := o.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	return job, nil
}

// Execute runs the job named by task. A job that is no longer pending was
// already picked up, so a redelivered task is a no-op. The returned error
// is for logging only; the outcome is recorded on the job.
func (o *Orchestrator) Execute(ctx context.Context, task queue.Task) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: task.JobID, Component: "prlens.jobs.worker"})

	job, err := o.store.Get(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", task.JobID, err)
	}
	if job.Status != model.JobPending {
		slog.InfoContext(ctx, "skipping job that is not pending", "status", job.Status)
		return nil
	}

	if _, err := o.store.Transition(ctx, job.ID, model.JobProcessing, store.Update{Progress: ProgressInitializing}); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			slog.InfoContext(ctx, "job claimed by another worker")
			return nil
		}
		return fmt.Errorf("starting job: %w", err)
	}

	sc := logger.StartSpan(ctx, "jobs.execute")
	defer sc.End()
	ctx = sc.Context()
	sc.Span().SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("repo", job.Repo),
		attribute.Int("pr_number", job.PRNumber),
	)

	start := time.Now()
	result, runErr := o.run(ctx, job, task.Credential)
	if runErr != nil {
		sc.RecordError(runErr)
		o.fail(ctx, job.ID, runErr)
		return runErr
	}

	if err := o.complete(ctx, job.ID, result); err != nil {
		sc.RecordError(err)
		o.fail(ctx, job.ID, err)
		return err
	}

	slog.InfoContext(ctx, "job completed",
		"files", result.Summary.TotalFiles,
		"issues", result.Summary.TotalIssues,
		"duration", time.Since(start))
	return nil
}

// run executes the review under the job timeout. Panics in the review are
// converted to errors.
func (o *Orchestrator) run(ctx context.Context, job *model.Job, credential string) (result *model.AnalysisResult, err error) {
	repo, err := fetch.ParseRepo(job.Repo)
	if err != nil {
		return nil, fmt.Errorf("parsing repository: %w", err)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Repo: repo.String(), PRNumber: job.PRNumber})

	fetcher, err := o.fetchers.For(repo, credential)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "review panicked", "panic", r)
			result, err = nil, fmt.Errorf("internal error: %v", r)
		}
	}()

	reporter := review.ReporterFunc(func(ctx context.Context, label string) error {
		_, err := o.store.Transition(ctx, job.ID, model.JobProcessing, store.Update{Progress: label})
		return err
	})

	result, err = review.New(fetcher, o.opts.FileConcurrency).Run(runCtx, repo, job.PRNumber, reporter)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("analysis timed out after %s", o.opts.Timeout)
	}
	return result, err
}

func (o *Orchestrator) complete(ctx context.Context, id string, result *model.AnalysisResult) error {
	if _, err := o.store.Transition(ctx, id, model.JobProcessing, store.Update{Progress: ProgressFinalizing}); err != nil {
		return fmt.Errorf("finalizing job: %w", err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if _, err := o.store.Transition(ctx, id, model.JobCompleted, store.Update{Result: payload}); err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	return nil
}

// fail records err on the job. It uses a context detached from cancellation
// so a job interrupted by shutdown still ends up failed.
func (o *Orchestrator) fail(ctx context.Context, id string, err error) {
	slog.WarnContext(ctx, "job failed", "error", logger.Truncate(err.Error(), 500))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, terr := o.store.Transition(writeCtx, id, model.JobFailed, store.Update{ErrorMessage: err.Error()}); terr != nil {
		slog.ErrorContext(ctx, "recording job failure", "error", terr)
	}
}
