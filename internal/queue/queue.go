// Package queue hands analysis tasks from the API to workers, either through
// an in-process channel or a Redis stream consumer group.
package queue

import (
	"context"
	"errors"
)

var (
	ErrQueueFull = errors.New("queue is full")
	ErrClosed    = errors.New("queue is closed")
)

// Task asks a worker to execute one analysis job. Credential is an optional
// per-job access token; it travels with the task and is never persisted in
// the job record.
type Task struct {
	JobID      string
	Credential string
	TraceID    string
	Attempt    int
}

// Handler executes a task. Returned errors are logged; the task is
// acknowledged either way since the outcome is recorded on the job.
type Handler func(ctx context.Context, task Task) error

// Queue is a task queue with competing consumers.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Consume runs workers goroutines delivering tasks to h and blocks until
	// ctx is cancelled and in-flight handlers return.
	Consume(ctx context.Context, workers int, h Handler) error
	Close() error
}
