package fetch

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/sprite-ai/prlens/internal/config"
)

// ErrUnsupportedHost is returned for repositories on hosts no client serves.
var ErrUnsupportedHost = errors.New("unsupported repository host")

// Factory builds per-job fetchers. Clients it creates for the same provider
// share one rate limiter.
type Factory struct {
	cfg           config.Config
	githubLimiter *rate.Limiter
	gitlabLimiter *rate.Limiter
}

func NewFactory(cfg config.Config) *Factory {
	return &Factory{
		cfg:           cfg,
		githubLimiter: rate.NewLimiter(rate.Limit(cfg.Fetch.RateLimit), cfg.Fetch.Burst),
		gitlabLimiter: rate.NewLimiter(rate.Limit(cfg.Fetch.RateLimit), cfg.Fetch.Burst),
	}
}

// IsGitLab reports whether repo should be read through the GitLab API.
func (f *Factory) IsGitLab(repo Repo) bool {
	return repo.Host == f.cfg.GitLabHost() || strings.Contains(repo.Host, "gitlab")
}

// IsGitHub reports whether repo is served by the configured GitHub API.
func (f *Factory) IsGitHub(repo Repo) bool {
	return repo.IsGitHub() || repo.Host == f.cfg.GitHubHost()
}

// Supports returns ErrUnsupportedHost when no provider serves repo.
func (f *Factory) Supports(repo Repo) error {
	if f.IsGitLab(repo) || f.IsGitHub(repo) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedHost, repo.Host)
}

// For returns a fetcher for repo. A non-empty credential replaces the
// configured token for that provider.
func (f *Factory) For(repo Repo, credential string) (Fetcher, error) {
	if err := f.Supports(repo); err != nil {
		return nil, err
	}
	if f.IsGitLab(repo) {
		token := f.cfg.GitLab.Token
		if credential != "" {
			token = credential
		}
		baseURL := f.cfg.GitLab.BaseURL
		if repo.Host != f.cfg.GitLabHost() {
			baseURL = "https://" + repo.Host
		}
		return NewGitLabClient(baseURL, token, f.gitlabLimiter)
	}

	token := f.cfg.GitHub.Token
	if credential != "" {
		token = credential
	}
	return NewGitHubClient(f.cfg.GitHub.APIURL, token, f.cfg.Fetch.Timeout, f.githubLimiter), nil
}
