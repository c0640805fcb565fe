package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/prlens/internal/api"
	"github.com/sprite-ai/prlens/internal/jobs"
	"github.com/sprite-ai/prlens/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [task-id]",
	Short: "Watch an analysis job in an interactive terminal UI",
	Long: `Poll a running prlens server for a job's progress and browse its issues
once it finishes. Pass a task id, or --repo and --pr to submit a new job
first.

Examples:
  prlens watch 3f2c9a0e-...
  prlens watch --repo octocat/hello-world --pr 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("api", "http://localhost:8000", "prlens API base URL")
	watchCmd.Flags().Duration("interval", time.Second, "status poll interval")
	watchCmd.Flags().String("repo", "", "repository to submit")
	watchCmd.Flags().Int("pr", 0, "pull request number to submit")
	watchCmd.Flags().String("token", "", "access token sent with the submission")
}

func runWatch(cmd *cobra.Command, args []string) error {
	base, _ := cmd.Flags().GetString("api")
	interval, _ := cmd.Flags().GetDuration("interval")
	repo, _ := cmd.Flags().GetString("repo")
	pr, _ := cmd.Flags().GetInt("pr")
	token, _ := cmd.Flags().GetString("token")

	client := api.NewClient(base, nil)

	var taskID string
	switch {
	case len(args) == 1:
		taskID = args[0]
	case repo != "":
		id, err := client.Submit(cmd.Context(), jobs.SubmitRequest{RepoURL: repo, PRNumber: pr, Credential: token})
		if err != nil {
			return fmt.Errorf("submitting job: %w", err)
		}
		taskID = id
	default:
		return errors.New("pass a task id or --repo and --pr")
	}

	result, err := tui.Run(client, taskID, interval)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s is still running.\n", taskID)
		return nil
	}
	if result.Results != nil {
		fmt.Fprint(cmd.OutOrStdout(), tui.Report(result.Results))
	} else if result.ErrorMessage != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s failed: %s\n", taskID, result.ErrorMessage)
	}
	return nil
}
