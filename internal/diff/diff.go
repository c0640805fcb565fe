// Package diff handles parsing unified diffs: structured per-file views
// through go-gitdiff and the lenient changed-line scan used for review scoping.
package diff

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/prlens/internal/model"
)

// FileStat summarizes one file of a parsed diff.
type FileStat struct {
	OldPath string
	NewPath string
	Status  model.FileStatus
	Binary  bool
	Added   int
	Deleted int
}

// Path is the path a review refers to: the old path for deletions, the new
// one otherwise.
func (f FileStat) Path() string {
	if f.Status == model.FileRemoved || f.NewPath == "" {
		return f.OldPath
	}
	return f.NewPath
}

// Stats is the strict view of a diff, one entry per file in diff order.
type Stats struct {
	Files []FileStat
}

// Totals returns the file count and the added and deleted line counts.
func (s *Stats) Totals() (files, added, deleted int) {
	files = len(s.Files)
	for _, f := range s.Files {
		added += f.Added
		deleted += f.Deleted
	}
	return
}

// BinaryPaths returns the paths of files the diff marks as binary.
func (s *Stats) BinaryPaths() map[string]bool {
	out := make(map[string]bool)
	for _, f := range s.Files {
		if f.Binary {
			out[f.Path()] = true
		}
	}
	return out
}

// Parse reads a unified diff with go-gitdiff. Unlike ChangedLines it is
// strict and fails on malformed input.
func Parse(raw string) (*Stats, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	s := &Stats{Files: make([]FileStat, 0, len(parsed))}
	for _, f := range parsed {
		fs := FileStat{
			OldPath: f.OldName,
			NewPath: f.NewName,
			Status:  statusOf(f),
			Binary:  f.IsBinary,
		}
		for _, frag := range f.TextFragments {
			fs.Added += int(frag.LinesAdded)
			fs.Deleted += int(frag.LinesDeleted)
		}
		s.Files = append(s.Files, fs)
	}
	return s, nil
}

func statusOf(f *gitdiff.File) model.FileStatus {
	switch {
	case f.IsNew:
		return model.FileAdded
	case f.IsDelete:
		return model.FileRemoved
	case f.IsRename:
		return model.FileRenamed
	default:
		return model.FileModified
	}
}

// GitDiff runs git diff in repoDir with args and returns its output.
func GitDiff(repoDir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"diff"}, args...)...)
	cmd.Dir = repoDir
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}
	return string(out), nil
}

// GitDiffRange returns the diff for a commit range like "main...HEAD".
func GitDiffRange(repoDir, commitRange string) (string, error) {
	return GitDiff(repoDir, "-U3", commitRange)
}
