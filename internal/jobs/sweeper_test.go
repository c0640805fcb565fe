package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/prlens/internal/model"
	"github.com/sprite-ai/prlens/internal/store"
)

func seedJob(t *testing.T, s store.Store, id string, final model.JobStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &model.Job{ID: id, Repo: "o/r", PRNumber: 1, Status: model.JobPending}))
	switch final {
	case model.JobProcessing:
		_, err := s.Transition(ctx, id, model.JobProcessing, store.Update{Progress: ProgressInitializing})
		require.NoError(t, err)
	case model.JobFailed:
		_, err := s.Transition(ctx, id, model.JobFailed, store.Update{ErrorMessage: "boom"})
		require.NoError(t, err)
	case model.JobCompleted:
		_, err := s.Transition(ctx, id, model.JobProcessing, store.Update{})
		require.NoError(t, err)
		_, err = s.Transition(ctx, id, model.JobCompleted, store.Update{Result: []byte(`{"files":[]}`)})
		require.NoError(t, err)
	}
}

func TestSweepOnce(t *testing.T) {
	s := store.NewMemory()
	seedJob(t, s, "pending", model.JobPending)
	seedJob(t, s, "processing", model.JobProcessing)
	seedJob(t, s, "failed", model.JobFailed)
	seedJob(t, s, "completed", model.JobCompleted)

	sw := NewSweeper(s, time.Hour, time.Minute)

	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing is old enough yet")

	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"pending", "processing"} {
		_, err := s.Get(context.Background(), id)
		assert.NoError(t, err, id)
	}
	for _, id := range []string{"failed", "completed"} {
		_, err := s.Get(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrNotFound, id)
	}
}

func TestNewSweeperDefaults(t *testing.T) {
	sw := NewSweeper(store.NewMemory(), 0, 0)
	assert.Equal(t, DefaultRetention, sw.retention)
	assert.Equal(t, time.Hour, sw.interval)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	s := store.NewMemory()
	seedJob(t, s, "old", model.JobFailed)

	sw := NewSweeper(s, time.Hour, 10*time.Millisecond)
	sw.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := s.Get(context.Background(), "old")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
