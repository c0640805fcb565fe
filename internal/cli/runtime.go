package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sprite-ai/prlens/internal/config"
	"github.com/sprite-ai/prlens/internal/fetch"
	"github.com/sprite-ai/prlens/internal/jobs"
	"github.com/sprite-ai/prlens/internal/logger"
	"github.com/sprite-ai/prlens/internal/queue"
	"github.com/sprite-ai/prlens/internal/store"
	"github.com/sprite-ai/prlens/internal/telemetry"
)

// runtime holds the dependencies a long-running command builds from config.
type runtime struct {
	cfg       config.Config
	store     store.Store
	queue     queue.Queue
	telemetry *telemetry.Telemetry
}

// loadConfig reads config and installs telemetry and logging. Log output
// goes to logOut.
func loadConfig(ctx context.Context, logOut io.Writer) (config.Config, *telemetry.Telemetry, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.OTel.ServiceVersion = version

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	logger.SetupTo(cfg, logOut)
	return cfg, tel, nil
}

// newRuntime opens the store and, when withQueue is set, the queue.
func newRuntime(ctx context.Context, withQueue bool) (*runtime, error) {
	cfg, tel, err := loadConfig(ctx, os.Stdout)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, telemetry: tel}

	rt.store, err = store.Open(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("opening job store: %w", err)
	}

	if withQueue {
		rt.queue, err = openQueue(ctx, cfg)
		if err != nil {
			rt.close()
			return nil, err
		}
	}
	return rt, nil
}

func openQueue(ctx context.Context, cfg config.Config) (queue.Queue, error) {
	if !cfg.Queue.Enabled() {
		slog.InfoContext(ctx, "using in-process queue")
		return queue.NewLocal(0), nil
	}
	q, err := queue.NewRedis(ctx, cfg.Queue.RedisURL, queue.RedisConfig{
		Stream:   cfg.Queue.RedisStream,
		Group:    cfg.Queue.RedisGroup,
		Consumer: cfg.Queue.RedisConsumer,
	})
	if err != nil {
		return nil, fmt.Errorf("opening redis queue: %w", err)
	}
	slog.InfoContext(ctx, "using redis queue",
		"stream", cfg.Queue.RedisStream,
		"group", cfg.Queue.RedisGroup)
	return q, nil
}

func (rt *runtime) orchestrator() *jobs.Orchestrator {
	return jobs.NewOrchestrator(rt.store, rt.queue, fetch.NewFactory(rt.cfg), jobs.Options{
		Timeout:         rt.cfg.Jobs.Timeout,
		FileConcurrency: rt.cfg.Jobs.FileConcurrency,
	})
}

func (rt *runtime) sweeper() *jobs.Sweeper {
	return jobs.NewSweeper(rt.store, rt.cfg.Jobs.Retention, rt.cfg.Jobs.SweepInterval)
}

// close releases everything, flushing telemetry last so shutdown logs ship.
func (rt *runtime) close() {
	var errs []error
	if rt.queue != nil {
		errs = append(errs, rt.queue.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, rt.telemetry.Shutdown(ctx))

	if err := errors.Join(errs...); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
