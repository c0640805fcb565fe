package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/prlens/internal/jobs"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete finished jobs older than the retention period",
	Long: `Delete completed and failed jobs created before the retention period
(JOB_RETENTION, default 7 days) and exit. Pending and processing jobs are
never deleted.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Duration("retention", 0, "override JOB_RETENTION")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	retention, _ := cmd.Flags().GetDuration("retention")
	if retention <= 0 {
		retention = rt.cfg.Jobs.Retention
	}

	n, err := jobs.NewSweeper(rt.store, retention, time.Hour).SweepOnce(ctx)
	if err != nil {
		return fmt.Errorf("sweeping jobs: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d job(s) older than %s.\n", n, retention)
	return nil
}
