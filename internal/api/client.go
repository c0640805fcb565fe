package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sprite-ai/prlens/internal/jobs"
)

// Client talks to a running prlens API. It implements Jobs, so the CLI and
// terminal UI can drive a remote server the same way the server drives the
// orchestrator.
type Client struct {
	baseURL string
	httpCli *http.Client
}

// NewClient returns a client for the API at baseURL. A nil httpCli uses a
// client with a 30s timeout.
func NewClient(baseURL string, httpCli *http.Client) *Client {
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpCli: httpCli}
}

// Submit posts an analysis request and returns the task id.
func (c *Client) Submit(ctx context.Context, req jobs.SubmitRequest) (string, error) {
	body, err := json.Marshal(analyzeRequest{
		RepoURL:     req.RepoURL,
		PRNumber:    req.PRNumber,
		GitHubToken: req.Credential,
	})
	if err != nil {
		return "", err
	}

	var resp analyzeResponse
	if err := c.do(ctx, http.MethodPost, "/analyze-pr", body, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// Status fetches the status of task id.
func (c *Client) Status(ctx context.Context, id string) (*jobs.StatusView, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &jobs.StatusView{
		TaskID:    resp.TaskID,
		Status:    resp.Status,
		Progress:  resp.Progress,
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
	}, nil
}

// Result fetches the outcome of task id.
func (c *Client) Result(ctx context.Context, id string) (*jobs.ResultView, error) {
	var resp resultResponse
	if err := c.do(ctx, http.MethodGet, "/results/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &jobs.ResultView{
		TaskID:       resp.TaskID,
		Status:       resp.Status,
		Results:      resp.Results,
		ErrorMessage: resp.ErrorMessage,
		CreatedAt:    resp.CreatedAt,
		UpdatedAt:    resp.UpdatedAt,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := apiError(resp.Body)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return jobs.ErrNotFound
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", jobs.ErrInvalidInput, msg)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func apiError(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return strings.TrimSpace(string(data))
	}
	return body.Error
}

var _ Jobs = (*Client)(nil)
