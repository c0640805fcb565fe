package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/sprite-ai/prlens/internal/logger"
	"github.com/sprite-ai/prlens/internal/store"
)

const DefaultRetention = 7 * 24 * time.Hour

// Sweeper deletes completed and failed jobs once they exceed the retention
// period. Pending and processing jobs are never removed, including ones whose
// worker died; detecting those is left to an external watchdog.
type Sweeper struct {
	store     store.Store
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewSweeper(s store.Store, retention, interval time.Duration) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: s, retention: retention, interval: interval, now: time.Now}
}

// SweepOnce deletes expired jobs and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "swept expired jobs", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "prlens.jobs.sweeper"})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "sweeping jobs", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
