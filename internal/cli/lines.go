package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/prlens/internal/diff"
	"github.com/sprite-ai/prlens/internal/model"
)

var linesCmd = &cobra.Command{
	Use:   "lines [commit-range | -]",
	Short: "Print the added line numbers of each file in a diff",
	Long: `Map a unified diff to the new-side line numbers it adds, per file. These
are the only lines prlens checks. Reads the working tree diff against HEAD
by default, a commit range when given, or any diff on stdin with "-".

Examples:
  prlens lines                   # working tree vs HEAD
  prlens lines main...HEAD       # branch vs main
  git show HEAD | prlens lines - # any diff`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLines,
}

func init() {
	linesCmd.Flags().Bool("json", false, "print a JSON object of path to line numbers")
}

func runLines(cmd *cobra.Command, args []string) error {
	raw, err := getDiff(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	changed := diff.ChangedLines(raw)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(changed)
	}

	printLines(cmd.OutOrStdout(), changed)
	return nil
}

func printLines(w io.Writer, changed model.ChangedLineSet) {
	if len(changed) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}

	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		fmt.Fprintf(w, "%s: %s\n", p, formatLineRanges(changed[p]))
	}
}

// formatLineRanges collapses ascending line numbers into ranges like "1-3,7".
func formatLineRanges(lines []int) string {
	if len(lines) == 0 {
		return "(no added lines)"
	}

	var parts []string
	start, prev := lines[0], lines[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range lines[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(parts, ",")
}

// getDiff reads a diff from stdin when args is "-", otherwise from git in
// the current repository.
func getDiff(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	repoDir, err := gitRepoRoot()
	if err != nil {
		return "", fmt.Errorf("not in a git repository (or git not installed): %w", err)
	}

	if len(args) == 1 {
		return diff.GitDiffRange(repoDir, args[0])
	}
	return diff.GitDiff(repoDir, "HEAD")
}

func gitRepoRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
