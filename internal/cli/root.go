// Package cli implements the prlens command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prlens",
	Short: "Line-level review of pull and merge requests",
	Long: `prlens fetches a pull request (GitHub) or merge request (GitLab), maps
its diff to the lines that changed, and runs heuristic checks against
only those lines.

Run "prlens serve" for the HTTP API with in-process workers, or
"prlens analyze" to review one pull request from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		serveCmd,
		workerCmd,
		analyzeCmd,
		linesCmd,
		checkFileCmd,
		watchCmd,
		sweepCmd,
		versionCmd,
	)
}

// exitError carries a process exit code without an error message, for
// commands that report findings through their exit status.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// ExitCode returns the process exit code for an error returned by Execute.
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	var ee *exitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
