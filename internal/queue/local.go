package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sprite-ai/prlens/internal/logger"
)

const defaultLocalCapacity = 1024

// Local is a bounded in-process queue. Tasks still buffered when the process
// exits are lost.
type Local struct {
	tasks chan Task

	mu     sync.RWMutex
	closed bool
}

func NewLocal(capacity int) *Local {
	if capacity <= 0 {
		capacity = defaultLocalCapacity
	}
	return &Local{tasks: make(chan Task, capacity)}
}

// Enqueue never blocks: it returns ErrQueueFull when the buffer is full.
func (q *Local) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	if task.Attempt <= 0 {
		task.Attempt = 1
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *Local) Consume(ctx context.Context, workers int, h Handler) error {
	if workers < 1 {
		workers = 1
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "prlens.queue.local"})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-q.tasks:
					if !ok {
						return
					}
					if err := h(ctx, task); err != nil {
						slog.ErrorContext(ctx, "task failed",
							"job_id", task.JobID,
							"error", err)
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Len returns the number of buffered tasks.
func (q *Local) Len() int {
	return len(q.tasks)
}

func (q *Local) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}
