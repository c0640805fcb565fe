// Package review runs a full pull request review: fetch, scope to changed
// lines, analyze, aggregate.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/prlens/internal/analysis"
	"github.com/sprite-ai/prlens/internal/diff"
	"github.com/sprite-ai/prlens/internal/fetch"
	"github.com/sprite-ai/prlens/internal/filter"
	"github.com/sprite-ai/prlens/internal/logger"
	"github.com/sprite-ai/prlens/internal/model"
)

// Progress labels reported while a review runs.
const (
	StageFetching  = "fetching PR data"
	StageAnalyzing = "analyzing files"
)

const defaultConcurrency = 4

// Reporter receives coarse progress labels. An error aborts the review.
type Reporter interface {
	Progress(ctx context.Context, label string) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, label string) error

func (f ReporterFunc) Progress(ctx context.Context, label string) error {
	return f(ctx, label)
}

type nopReporter struct{}

func (nopReporter) Progress(context.Context, string) error { return nil }

// Pipeline reviews pull requests read through a Fetcher.
type Pipeline struct {
	fetcher     fetch.Fetcher
	concurrency int
}

// New returns a Pipeline that analyzes up to concurrency files at once.
func New(f fetch.Fetcher, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Pipeline{fetcher: f, concurrency: concurrency}
}

// candidate is a file selected for analysis with the lines to check.
type candidate struct {
	path  string
	lines []int
}

// Run reviews pull request pr of repo. Metadata, file list and diff are
// required; a failure fetching any of them fails the review. A file whose
// content cannot be fetched is skipped. Files appear in the result in the
// order the provider listed them, and only when they have issues.
func (p *Pipeline) Run(ctx context.Context, repo fetch.Repo, pr int, rep Reporter) (*model.AnalysisResult, error) {
	if rep == nil {
		rep = nopReporter{}
	}

	sc := logger.StartSpan(ctx, "review.run")
	defer sc.End()
	ctx = sc.Context()
	sc.Span().SetAttributes(
		attribute.String("repo", repo.String()),
		attribute.Int("pr_number", pr),
	)

	result, err := p.run(ctx, repo, pr, rep)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}
	sc.Span().SetAttributes(
		attribute.Int("files_reported", result.Summary.TotalFiles),
		attribute.Int("issues", result.Summary.TotalIssues),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, repo fetch.Repo, pr int, rep Reporter) (*model.AnalysisResult, error) {
	if err := rep.Progress(ctx, StageFetching); err != nil {
		return nil, fmt.Errorf("reporting progress: %w", err)
	}

	meta, err := p.fetcher.PRMetadata(ctx, repo, pr)
	if err != nil {
		return nil, fmt.Errorf("fetching PR metadata: %w", err)
	}
	files, err := p.fetcher.ChangedFiles(ctx, repo, pr)
	if err != nil {
		return nil, fmt.Errorf("fetching PR files: %w", err)
	}
	rawDiff, err := p.fetcher.DiffText(ctx, repo, pr)
	if err != nil {
		return nil, fmt.Errorf("fetching PR diff: %w", err)
	}

	if err := rep.Progress(ctx, StageAnalyzing); err != nil {
		return nil, fmt.Errorf("reporting progress: %w", err)
	}

	candidates := selectCandidates(ctx, files, rawDiff)
	slog.DebugContext(ctx, "review scoped",
		"files", len(files),
		"candidates", len(candidates))

	reports := make([]*model.FileReport, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, c := range candidates {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("reviewing %s: internal error: %v", c.path, r)
				}
			}()

			content, err := p.fetcher.FileContent(gctx, repo, c.path, meta.HeadSHA)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.WarnContext(gctx, "skipping file",
					"path", c.path,
					"error", err)
				return nil
			}

			if issues := analysis.Analyze(content, c.path, c.lines); len(issues) > 0 {
				reports[i] = &model.FileReport{Name: c.path, Issues: issues}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// errgroup only surfaces errors returned by workers; a deadline that
	// expires after the last fetch still has to fail the review.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.FileReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, *r)
		}
	}
	return model.NewAnalysisResult(out), nil
}

// selectCandidates keeps files that still exist, are not generated or
// vendored, are not binary, and appear in the diff. A file in the diff with
// no added lines keeps an empty line list, which the engine checks in full.
func selectCandidates(ctx context.Context, files []model.ChangedFile, rawDiff string) []candidate {
	changed := diff.ChangedLines(rawDiff)

	binary := map[string]bool{}
	if stats, err := diff.Parse(rawDiff); err == nil {
		binary = stats.BinaryPaths()
	} else {
		slog.DebugContext(ctx, "diff not strictly parseable, skipping binary detection", "error", err)
	}

	var out []candidate
	for _, f := range files {
		if f.Status == model.FileRemoved || filter.ShouldSkip(f.Path) || binary[f.Path] {
			continue
		}
		lines, ok := changed[f.Path]
		if !ok {
			continue
		}
		out = append(out, candidate{path: f.Path, lines: lines})
	}
	return out
}
