package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/prlens/internal/api"
	"github.com/sprite-ai/prlens/internal/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server accepting pull request analysis jobs.

Endpoints:
  GET  /                  Service info
  GET  /health            Health check (includes the job store)
  POST /analyze-pr        Submit {"repo_url", "pr_number", "github_token"?}
  GET  /status/{task_id}  Job status and progress
  GET  /results/{task_id} Job result or error
  GET  /ws/{task_id}      WebSocket feed of status changes

Jobs run on in-process workers. With REDIS_URL set, tasks go through a Redis
stream instead and "prlens worker" processes can share the load; pass
--workers 0 to leave execution to them entirely.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default $PRLENS_ADDR or :8000)")
	serveCmd.Flags().IntP("workers", "w", -1, "in-process workers (default $WORKER_CONCURRENCY)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = rt.cfg.Addr
	}
	workers, _ := cmd.Flags().GetInt("workers")
	if workers < 0 {
		workers = rt.cfg.Jobs.Workers
	}
	if workers == 0 && !rt.cfg.Queue.Enabled() {
		slog.WarnContext(ctx, "no workers and no shared queue: submitted jobs will never run")
	}

	orch := rt.orchestrator()
	srv := api.New(addr, orch, rt.store, api.WithVersion(version))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	if workers > 0 {
		g.Go(func() error { return consume(gctx, rt, orch, workers) })
	}
	g.Go(func() error {
		rt.sweeper().Run(gctx)
		return nil
	})
	return g.Wait()
}

// consume runs workers until ctx ends. Cancellation is a clean stop.
func consume(ctx context.Context, rt *runtime, orch *jobs.Orchestrator, workers int) error {
	slog.InfoContext(ctx, "starting workers", "count", workers)
	err := rt.queue.Consume(ctx, workers, orch.Execute)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
