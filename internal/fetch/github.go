package fetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sprite-ai/prlens/internal/model"
)

const (
	DefaultGitHubAPIURL = "https://api.github.com"

	filesPerPage  = 100
	maxFilesPages = 30
	userAgent     = "prlens"
)

// GitHubClient reads pull requests through the GitHub REST API.
type GitHubClient struct {
	token   string
	apiURL  string
	httpCli *http.Client
	limiter *rate.Limiter
}

// NewGitHubClient creates a client for apiURL. An empty token makes
// unauthenticated requests. limiter may be shared between clients and may be
// nil.
func NewGitHubClient(apiURL, token string, timeout time.Duration, limiter *rate.Limiter) *GitHubClient {
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	return &GitHubClient{
		token:   token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

type ghPull struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	User  struct {
		Login string `json:"login"`
	} `json:"user"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Head struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
}

type ghFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	SHA      string `json:"sha"`
}

type ghContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// PRMetadata fetches the pull request title, description and branches.
func (c *GitHubClient) PRMetadata(ctx context.Context, repo Repo, pr int) (*model.PRMetadata, error) {
	const op = "fetching PR metadata"

	body, err := c.get(ctx, op, c.pullURL(repo, pr), "application/vnd.github.v3+json")
	if err != nil {
		return nil, err
	}

	var p ghPull
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%s: parsing response: %w", op, err)
	}

	return &model.PRMetadata{
		Title:       p.Title,
		Description: p.Body,
		Author:      p.User.Login,
		BaseBranch:  p.Base.Ref,
		HeadBranch:  p.Head.Ref,
		HeadSHA:     p.Head.SHA,
	}, nil
}

// ChangedFiles lists every file in the pull request, following pagination.
func (c *GitHubClient) ChangedFiles(ctx context.Context, repo Repo, pr int) ([]model.ChangedFile, error) {
	const op = "fetching PR files"

	var files []model.ChangedFile
	for page := 1; page <= maxFilesPages; page++ {
		u := fmt.Sprintf("%s/files?per_page=%d&page=%d", c.pullURL(repo, pr), filesPerPage, page)
		body, err := c.get(ctx, op, u, "application/vnd.github.v3+json")
		if err != nil {
			return nil, err
		}

		var batch []ghFile
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("%s: parsing response: %w", op, err)
		}
		for _, f := range batch {
			files = append(files, model.ChangedFile{
				Path:        f.Filename,
				Status:      githubFileStatus(f.Status),
				RevisionSHA: f.SHA,
			})
		}
		if len(batch) < filesPerPage {
			break
		}
	}
	return files, nil
}

// DiffText fetches the pull request as a unified diff.
func (c *GitHubClient) DiffText(ctx context.Context, repo Repo, pr int) (string, error) {
	body, err := c.get(ctx, "fetching PR diff", c.pullURL(repo, pr), "application/vnd.github.v3.diff")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FileContent fetches a file at ref through the contents endpoint.
func (c *GitHubClient) FileContent(ctx context.Context, repo Repo, path, ref string) (string, error) {
	op := "fetching " + path

	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiURL, repo.Owner, repo.Name, strings.Join(segments, "/"))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}

	body, err := c.get(ctx, op, u, "application/vnd.github.v3+json")
	if err != nil {
		return "", err
	}

	var content ghContent
	if err := json.Unmarshal(body, &content); err != nil {
		return "", fmt.Errorf("%s: parsing response: %w", op, err)
	}
	if content.Encoding != "base64" {
		return content.Content, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("%s: decoding content: %w", op, err)
	}
	return string(decoded), nil
}

func (c *GitHubClient) pullURL(repo Repo, pr int) string {
	return fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, repo.Owner, repo.Name, pr)
}

func (c *GitHubClient) get(ctx context.Context, op, u, accept string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: op, Kind: KindTransport, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		exhausted := resp.Header.Get("X-RateLimit-Remaining") == "0"
		fe := &Error{Op: op, Kind: kindForStatus(resp.StatusCode, exhausted), Status: resp.StatusCode}
		if msg := apiMessage(body); msg != "" {
			fe.Err = errors.New(msg)
		}
		return nil, fe
	}
	return body, nil
}

// apiMessage pulls the "message" field out of a GitHub error body, falling
// back to the raw body.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func githubFileStatus(s string) model.FileStatus {
	switch s {
	case "added":
		return model.FileAdded
	case "removed":
		return model.FileRemoved
	case "renamed":
		return model.FileRenamed
	default:
		return model.FileModified
	}
}
