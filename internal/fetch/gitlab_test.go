package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/sprite-ai/prlens/internal/diff"
	"github.com/sprite-ai/prlens/internal/model"
)

func TestUnifiedDiff(t *testing.T) {
	diffs := []*gitlab.MergeRequestDiff{
		{OldPath: "a.py", NewPath: "a.py", Diff: "@@ -1,2 +1,2 @@\n x = 1\n-y = 2\n+y = 3\n"},
		{OldPath: "new.py", NewPath: "new.py", NewFile: true, Diff: "@@ -0,0 +1,2 @@\n+one\n+two"},
		{OldPath: "gone.py", NewPath: "gone.py", DeletedFile: true, Diff: "@@ -1 +0,0 @@\n-bye\n"},
		{OldPath: "old.md", NewPath: "docs/new.md", RenamedFile: true},
	}

	raw := unifiedDiff(diffs)

	if !strings.HasPrefix(raw, "diff --git a/a.py b/a.py\n--- a/a.py\n+++ b/a.py\n@@ -1,2 +1,2 @@\n") {
		t.Errorf("unexpected header:\n%s", raw)
	}
	if !strings.Contains(raw, "new file mode 100644\n--- /dev/null\n+++ b/new.py\n") {
		t.Errorf("missing new-file header:\n%s", raw)
	}
	if !strings.Contains(raw, "deleted file mode 100644\n--- a/gone.py\n+++ /dev/null\n") {
		t.Errorf("missing deleted-file header:\n%s", raw)
	}
	if !strings.Contains(raw, "rename from old.md\nrename to docs/new.md\n") {
		t.Errorf("missing rename header:\n%s", raw)
	}

	lines := diff.ChangedLines(raw)
	want := map[string][]int{"a.py": {2}, "new.py": {1, 2}, "gone.py": {}, "docs/new.md": {}}
	if len(lines) != len(want) {
		t.Fatalf("ChangedLines = %v", lines)
	}
	for path, w := range want {
		if got := lines[path]; len(got) != len(w) || (len(w) > 0 && got[0] != w[0]) {
			t.Errorf("%s: got %v, want %v", path, got, w)
		}
	}

	ds, err := diff.Parse(raw)
	if err != nil {
		t.Fatalf("synthesized diff does not parse: %v", err)
	}
	if len(ds.Files) != 4 {
		t.Errorf("expected 4 parsed files, got %d", len(ds.Files))
	}
}

func TestGitLabClient(t *testing.T) {
	var diffCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/merge_requests/7/diffs"):
			diffCalls.Add(1)
			w.Write([]byte(`[
				{"old_path":"app.py","new_path":"app.py","diff":"@@ -1 +1,2 @@\n x = 1\n+y = 2\n"},
				{"old_path":"tmp.py","new_path":"tmp.py","deleted_file":true,"diff":"@@ -1 +0,0 @@\n-z\n"}
			]`))
		case strings.HasSuffix(r.URL.Path, "/merge_requests/7"):
			w.Write([]byte(`{"iid":7,"title":"Tidy","description":"cleanup","author":{"username":"dev"},
				"source_branch":"feature","target_branch":"main","sha":"cafe"}`))
		case strings.HasSuffix(r.URL.Path, "/repository/files/app.py/raw"):
			if r.URL.Query().Get("ref") != "cafe" {
				t.Errorf("ref = %q", r.URL.Query().Get("ref"))
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("x = 1\ny = 2\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"404 Not Found"}`))
		}
	}))
	defer server.Close()

	c, err := NewGitLabClient(server.URL, "glpat-test", nil)
	if err != nil {
		t.Fatal(err)
	}
	repo := Repo{Host: "gitlab.example.com", Owner: "team", Name: "app"}
	ctx := context.Background()

	meta, err := c.PRMetadata(ctx, repo, 7)
	if err != nil {
		t.Fatalf("PRMetadata error: %v", err)
	}
	if meta.Title != "Tidy" || meta.Author != "dev" || meta.HeadSHA != "cafe" || meta.BaseBranch != "main" {
		t.Errorf("meta = %+v", meta)
	}

	files, err := c.ChangedFiles(ctx, repo, 7)
	if err != nil {
		t.Fatalf("ChangedFiles error: %v", err)
	}
	if len(files) != 2 || files[0].Status != model.FileModified || files[1].Status != model.FileRemoved {
		t.Errorf("files = %+v", files)
	}

	raw, err := c.DiffText(ctx, repo, 7)
	if err != nil {
		t.Fatalf("DiffText error: %v", err)
	}
	if got := diff.ChangedLines(raw)["app.py"]; len(got) != 1 || got[0] != 2 {
		t.Errorf("changed lines = %v", got)
	}
	if n := diffCalls.Load(); n != 1 {
		t.Errorf("expected diffs to be listed once, got %d", n)
	}

	content, err := c.FileContent(ctx, repo, "app.py", "cafe")
	if err != nil {
		t.Fatalf("FileContent error: %v", err)
	}
	if content != "x = 1\ny = 2\n" {
		t.Errorf("content = %q", content)
	}

	_, err = c.PRMetadata(ctx, repo, 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
