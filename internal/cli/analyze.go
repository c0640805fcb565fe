package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/prlens/internal/fetch"
	"github.com/sprite-ai/prlens/internal/model"
	"github.com/sprite-ai/prlens/internal/review"
	"github.com/sprite-ai/prlens/internal/tui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo-url> <pr-number>",
	Short: "Review one pull request and print the report (non-interactive)",
	Long: `Fetch a pull request, check the lines it changes and print the report.
Nothing is stored; the review runs in this process. Useful for CI.

Examples:
  prlens analyze octocat/hello-world 42
  prlens analyze https://gitlab.com/group/sub/project 7 --format json

Exit codes:
  0  no issues found
  1  low or medium issues found
  2  high or critical issues found`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown")
	analyzeCmd.Flags().String("token", "", "access token (default $GITHUB_TOKEN or $GITLAB_TOKEN)")
	analyzeCmd.Flags().BoolP("quiet", "q", false, "do not print progress to stderr")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := fetch.ParseRepo(args[0])
	if err != nil {
		return err
	}
	pr, err := strconv.Atoi(args[1])
	if err != nil || pr <= 0 {
		return fmt.Errorf("pr-number must be a positive integer, got %q", args[1])
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" && format != "markdown" {
		return fmt.Errorf("unknown format %q", format)
	}

	cfg, tel, err := loadConfig(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = tel.Shutdown(context.WithoutCancel(ctx)) }()

	token, _ := cmd.Flags().GetString("token")
	fetcher, err := fetch.NewFactory(cfg).For(repo, token)
	if err != nil {
		return err
	}

	var rep review.Reporter
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		rep = review.ReporterFunc(func(_ context.Context, label string) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "→ %s#%d: %s\n", repo, pr, label)
			return nil
		})
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Jobs.Timeout)
	defer cancel()
	result, err := review.New(fetcher, cfg.Jobs.FileConcurrency).Run(runCtx, repo, pr, rep)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		err = outputJSON(out, result)
	case "markdown":
		outputMarkdown(out, repo, pr, result)
	default:
		fmt.Fprint(out, tui.Report(result))
	}
	if err != nil {
		return err
	}

	if code := exitCodeFor(result.Summary); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func exitCodeFor(s model.Summary) int {
	switch {
	case s.CriticalIssues+s.HighIssues > 0:
		return 2
	case s.TotalIssues > 0:
		return 1
	default:
		return 0
	}
}

func outputJSON(w io.Writer, result *model.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputMarkdown(w io.Writer, repo fetch.Repo, pr int, result *model.AnalysisResult) {
	s := result.Summary
	fmt.Fprintf(w, "## prlens report for %s#%d\n\n", repo.FullName(), pr)
	fmt.Fprintf(w, "**%d issue(s)** in **%d file(s)**: %d critical, %d high, %d medium, %d low\n\n",
		s.TotalIssues, s.TotalFiles, s.CriticalIssues, s.HighIssues, s.MediumIssues, s.LowIssues)

	if len(result.Files) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return
	}

	fmt.Fprintln(w, "| Severity | Type | Location | Issue | Suggestion |")
	fmt.Fprintln(w, "|----------|------|----------|-------|------------|")
	for _, f := range result.Files {
		for _, is := range f.Issues {
			fmt.Fprintf(w, "| %s | %s | `%s:%d` | %s | %s |\n",
				is.Severity, is.Type, f.Name, is.Line, markdownCell(is.Description), markdownCell(is.Suggestion))
		}
	}
}

func markdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
