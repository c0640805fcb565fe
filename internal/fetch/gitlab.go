package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/sprite-ai/prlens/internal/model"
)

// GitLabClient reads merge requests through the GitLab API.
type GitLabClient struct {
	client  *gitlab.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	diffs map[string][]*gitlab.MergeRequestDiff
}

// NewGitLabClient creates a client for the instance at baseURL
// (for example https://gitlab.com).
func NewGitLabClient(baseURL, token string, limiter *rate.Limiter) (*GitLabClient, error) {
	apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &GitLabClient{
		client:  client,
		limiter: limiter,
		diffs:   make(map[string][]*gitlab.MergeRequestDiff),
	}, nil
}

// PRMetadata fetches the merge request title, description and branches.
func (c *GitLabClient) PRMetadata(ctx context.Context, repo Repo, pr int) (*model.PRMetadata, error) {
	const op = "fetching PR metadata"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	mr, resp, err := c.client.MergeRequests.GetMergeRequest(repo.FullName(), int64(pr), nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError(op, resp, err)
	}

	meta := &model.PRMetadata{
		Title:       mr.Title,
		Description: mr.Description,
		BaseBranch:  mr.TargetBranch,
		HeadBranch:  mr.SourceBranch,
		HeadSHA:     mr.SHA,
	}
	if mr.Author != nil {
		meta.Author = mr.Author.Username
	}
	return meta, nil
}

// ChangedFiles lists the files of the merge request.
func (c *GitLabClient) ChangedFiles(ctx context.Context, repo Repo, pr int) ([]model.ChangedFile, error) {
	diffs, err := c.mergeRequestDiffs(ctx, "fetching PR files", repo, pr)
	if err != nil {
		return nil, err
	}

	files := make([]model.ChangedFile, 0, len(diffs))
	for _, d := range diffs {
		f := model.ChangedFile{Path: d.NewPath, Status: model.FileModified}
		switch {
		case d.DeletedFile:
			f.Path = d.OldPath
			f.Status = model.FileRemoved
		case d.NewFile:
			f.Status = model.FileAdded
		case d.RenamedFile:
			f.Status = model.FileRenamed
		}
		files = append(files, f)
	}
	return files, nil
}

// DiffText returns the merge request changes as a unified diff with
// git-style file headers.
func (c *GitLabClient) DiffText(ctx context.Context, repo Repo, pr int) (string, error) {
	diffs, err := c.mergeRequestDiffs(ctx, "fetching PR diff", repo, pr)
	if err != nil {
		return "", err
	}
	return unifiedDiff(diffs), nil
}

// FileContent fetches the raw file at ref.
func (c *GitLabClient) FileContent(ctx context.Context, repo Repo, path, ref string) (string, error) {
	op := "fetching " + path
	if err := c.wait(ctx, op); err != nil {
		return "", err
	}

	opts := &gitlab.GetRawFileOptions{}
	if ref != "" {
		opts.Ref = gitlab.Ptr(ref)
	}
	raw, resp, err := c.client.RepositoryFiles.GetRawFile(repo.FullName(), path, opts, gitlab.WithContext(ctx))
	if err != nil {
		return "", gitlabError(op, resp, err)
	}
	return string(raw), nil
}

// mergeRequestDiffs pages through the MR diffs once and caches them, since
// both ChangedFiles and DiffText are built from the same listing.
func (c *GitLabClient) mergeRequestDiffs(ctx context.Context, op string, repo Repo, pr int) ([]*gitlab.MergeRequestDiff, error) {
	key := fmt.Sprintf("%s!%d", repo.FullName(), pr)

	c.mu.Lock()
	cached, ok := c.diffs[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{
			Page:    1,
			PerPage: 100,
		},
	}

	var all []*gitlab.MergeRequestDiff
	for {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		page, resp, err := c.client.MergeRequests.ListMergeRequestDiffs(repo.FullName(), int64(pr), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gitlabError(op, resp, err)
		}
		all = append(all, page...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.mu.Lock()
	c.diffs[key] = all
	c.mu.Unlock()
	return all, nil
}

func (c *GitLabClient) wait(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	return nil
}

func gitlabError(op string, resp *gitlab.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	return &Error{
		Op:     op,
		Kind:   kindForStatus(resp.StatusCode, false),
		Status: resp.StatusCode,
		Err:    err,
	}
}

// unifiedDiff wraps each MR diff, which holds only hunks, in the file headers
// git would emit.
func unifiedDiff(diffs []*gitlab.MergeRequestDiff) string {
	var sb strings.Builder
	for _, d := range diffs {
		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", d.OldPath, d.NewPath)

		oldName, newName := "a/"+d.OldPath, "b/"+d.NewPath
		switch {
		case d.NewFile:
			sb.WriteString("new file mode 100644\n")
			oldName = "/dev/null"
		case d.DeletedFile:
			sb.WriteString("deleted file mode 100644\n")
			newName = "/dev/null"
		case d.RenamedFile:
			fmt.Fprintf(&sb, "rename from %s\nrename to %s\n", d.OldPath, d.NewPath)
		}

		if d.Diff == "" {
			continue
		}
		fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
		sb.WriteString(d.Diff)
		if !strings.HasSuffix(d.Diff, "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
