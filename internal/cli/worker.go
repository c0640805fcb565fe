package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run analysis workers against the Redis queue",
	Long: `Consume analysis tasks from the Redis stream configured by REDIS_URL and
execute them. Run any number of worker processes alongside "prlens serve";
each task is delivered to one of them. Workers also sweep expired jobs.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntP("workers", "w", 0, "concurrent workers (default $WORKER_CONCURRENCY)")
	workerCmd.Flags().Bool("no-sweep", false, "do not delete expired jobs from this process")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.cfg.Queue.Enabled() {
		return errors.New("worker needs REDIS_URL; without it jobs run inside \"prlens serve\"")
	}

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = rt.cfg.Jobs.Workers
	}
	noSweep, _ := cmd.Flags().GetBool("no-sweep")

	orch := rt.orchestrator()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consume(gctx, rt, orch, workers) })
	if !noSweep {
		g.Go(func() error {
			rt.sweeper().Run(gctx)
			return nil
		})
	}
	return g.Wait()
}
