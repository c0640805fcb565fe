package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sprite-ai/prlens/internal/model"
)

// Memory is an in-process Store. Jobs are lost when the process exits.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs: make(map[string]model.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Create(ctx context.Context, job *model.Job) error {
	if err := validateNew(job); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.now()
	}
	job.UpdatedAt = job.CreatedAt
	m.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

func (m *Memory) Transition(ctx context.Context, id string, to model.JobStatus, u Update) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := CheckTransition(job.Status, to, u); err != nil {
		return nil, err
	}

	next := apply(job, to, u, m.now())
	m.jobs[id] = next
	out := cloneJob(next)
	return &out, nil
}

func (m *Memory) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func cloneJob(j model.Job) model.Job {
	if j.Result != nil {
		j.Result = append([]byte(nil), j.Result...)
	}
	return j
}
