package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/prlens/internal/analysis"
	"github.com/sprite-ai/prlens/internal/diff"
	"github.com/sprite-ai/prlens/internal/model"
	"github.com/sprite-ai/prlens/internal/tui"
)

var checkFileCmd = &cobra.Command{
	Use:   "check-file <path>",
	Short: "Run the line checks on a local file",
	Long: `Run the line checks on a local file and print each issue with its
source line. All lines are checked unless --lines selects some.

Examples:
  prlens check-file app.py
  prlens check-file app.py --lines 3,10-12`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckFile,
}

func init() {
	checkFileCmd.Flags().StringP("lines", "l", "", "line numbers or ranges to check, e.g. 3,10-12")
	checkFileCmd.Flags().Bool("no-color", false, "disable syntax highlighting")
}

func runCheckFile(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	spec, _ := cmd.Flags().GetString("lines")
	lines, err := parseLineSpec(spec)
	if err != nil {
		return err
	}

	content := string(data)
	issues := analysis.Analyze(content, path, lines)

	noColor, _ := cmd.Flags().GetBool("no-color")
	printFileIssues(cmd.OutOrStdout(), path, content, issues, !noColor)

	if len(issues) > 0 {
		return &exitError{code: exitCodeFor(model.Summarize([]model.FileReport{{Name: path, Issues: issues}}))}
	}
	return nil
}

func printFileIssues(w io.Writer, path, content string, issues []model.Issue, color bool) {
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s: no issues found.\n", path)
		return
	}

	source := strings.Split(content, "\n")
	shown := source
	if color {
		shown = diff.HighlightLines(path, source)
	}

	for _, is := range issues {
		severity := string(is.Severity)
		if color {
			severity = tui.SeverityStyle(is.Severity).Render(severity)
		}
		fmt.Fprintf(w, "%s:%d [%s] %s: %s\n", path, is.Line, severity, is.Type, is.Description)
		if is.Line >= 1 && is.Line <= len(shown) {
			fmt.Fprintf(w, "    %s\n", shown[is.Line-1])
		}
		if is.Suggestion != "" {
			fmt.Fprintf(w, "    → %s\n", is.Suggestion)
		}
	}
}

// parseLineSpec parses "3,10-12" into [3 10 11 12]. An empty spec selects
// every line.
func parseLineSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid line %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(hi)
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid line range %q", part)
			}
		}
		for n := start; n <= end; n++ {
			out = append(out, n)
		}
	}
	return out, nil
}
