// Package store persists analysis jobs and enforces their state machine.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sprite-ai/prlens/internal/model"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyExists     = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Store is the persistence boundary for jobs. Implementations must be safe
// for concurrent use; each call is applied atomically.
type Store interface {
	// Create inserts a new pending job.
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// Transition moves job id to status to, applying u, and returns the
	// updated record. Disallowed moves return ErrInvalidTransition.
	Transition(ctx context.Context, id string, to model.JobStatus, u Update) (*model.Job, error)
	// DeleteFinishedBefore removes completed and failed jobs created before
	// cutoff and returns how many were removed.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Update carries the fields a transition may set. Empty fields leave the
// stored value unchanged.
type Update struct {
	Progress     string
	Result       []byte
	ErrorMessage string
}

// CheckTransition validates a move between statuses together with its update.
//
//	pending    -> processing | failed
//	processing -> processing (progress) | completed (result) | failed (message)
func CheckTransition(from, to model.JobStatus, u Update) error {
	switch {
	case from == model.JobPending && to == model.JobProcessing:
	case from == model.JobPending && to == model.JobFailed,
		from == model.JobProcessing && to == model.JobFailed:
		if u.ErrorMessage == "" {
			return fmt.Errorf("%w: %s -> %s requires an error message", ErrInvalidTransition, from, to)
		}
	case from == model.JobProcessing && to == model.JobProcessing:
	case from == model.JobProcessing && to == model.JobCompleted:
		if len(u.Result) == 0 {
			return fmt.Errorf("%w: %s -> %s requires a result", ErrInvalidTransition, from, to)
		}
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// apply returns a copy of job moved to status to with u applied.
func apply(job model.Job, to model.JobStatus, u Update, now time.Time) model.Job {
	job.Status = to
	if u.Progress != "" {
		job.Progress = u.Progress
	}
	if len(u.Result) > 0 {
		job.Result = append([]byte(nil), u.Result...)
	}
	if u.ErrorMessage != "" {
		job.ErrorMessage = u.ErrorMessage
	}
	if !now.After(job.UpdatedAt) {
		now = job.UpdatedAt.Add(time.Microsecond)
	}
	job.UpdatedAt = now
	return job
}

func validateNew(job *model.Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	if job.Status != model.JobPending {
		return fmt.Errorf("new job must be pending, got %s", job.Status)
	}
	return nil
}
