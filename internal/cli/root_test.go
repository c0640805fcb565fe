package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sprite-ai/prlens/internal/model"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "worker", "analyze", "lines", "check-file", "watch", "sweep", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}

	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "prlens dev") {
		t.Errorf("unexpected version output %q", out)
	}
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const linesDiff = `diff --git a/app.py b/app.py
--- a/app.py
+++ b/app.py
@@ -1,2 +1,5 @@
 import os
+a = 1
+b = 2
+c = 3
 pass
@@ -20,1 +23,2 @@
 tail
+d = 4
diff --git a/gone.py b/gone.py
deleted file mode 100644
--- a/gone.py
+++ /dev/null
@@ -1 +0,0 @@
-x = 1
`

func TestLinesFromStdin(t *testing.T) {
	out, err := execute(t, linesDiff, "lines", "-")
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	want := "app.py: 2-4,24\ngone.py: (no added lines)\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestFormatLineRanges(t *testing.T) {
	tests := []struct {
		lines []int
		want  string
	}{
		{nil, "(no added lines)"},
		{[]int{5}, "5"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 3, 4, 9}, "1,3-4,9"},
	}
	for _, tt := range tests {
		if got := formatLineRanges(tt.lines); got != tt.want {
			t.Errorf("formatLineRanges(%v) = %q, want %q", tt.lines, got, tt.want)
		}
	}
}

func TestParseLineSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"3", []int{3}, false},
		{"3, 10-12", []int{3, 10, 11, 12}, false},
		{"0", nil, true},
		{"5-2", nil, true},
		{"a-b", nil, true},
	}
	for _, tt := range tests {
		got, err := parseLineSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLineSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseLineSpec(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		s    model.Summary
		want int
	}{
		{model.Summary{}, 0},
		{model.Summary{TotalIssues: 2, LowIssues: 1, MediumIssues: 1}, 1},
		{model.Summary{TotalIssues: 1, HighIssues: 1}, 2},
		{model.Summary{TotalIssues: 1, CriticalIssues: 1}, 2},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.s); got != tt.want {
			t.Errorf("exitCodeFor(%+v) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestCheckFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.py")
	src := "import os\nif x == None:\n    pass\ntry:\n    pass\nexcept:\n    pass\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "check-file", path, "--lines", "2", "--no-color")
	if ExitCode(err) != 1 {
		t.Errorf("expected exit code 1 for a medium issue, got %v", err)
	}
	if !strings.Contains(out, path+":2 [medium] bug: Use 'is None' instead of '== None'") {
		t.Errorf("missing issue line in output:\n%s", out)
	}
	if !strings.Contains(out, "    if x == None:") {
		t.Errorf("missing source line in output:\n%s", out)
	}
	if strings.Contains(out, "Bare except") {
		t.Errorf("line 6 was not selected:\n%s", out)
	}

	out, err = execute(t, "", "check-file", path, "--lines", "", "--no-color")
	if ExitCode(err) != 2 {
		t.Errorf("expected exit code 2 with the bare except, got %v", err)
	}
	if !strings.Contains(out, "Bare except clause") {
		t.Errorf("full-file check should report the bare except:\n%s", out)
	}
}

func TestAnalyzeRejectsBadArgs(t *testing.T) {
	if _, err := execute(t, "", "analyze", "not a repo", "1"); err == nil {
		t.Error("expected error for invalid repository")
	}
	if _, err := execute(t, "", "analyze", "octocat/hello", "zero"); err == nil {
		t.Error("expected error for invalid pr number")
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(&exitError{code: 2}); got != 2 {
		t.Errorf("ExitCode = %d, want 2", got)
	}
	if got := ExitCode(os.ErrNotExist); got != 1 {
		t.Errorf("ExitCode = %d, want 1", got)
	}
}
