package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRLENS_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "sqlite:./prlens.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "prlens_jobs", cfg.Queue.RedisStream)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	assert.Equal(t, "github.com", cfg.GitHubHost())
	assert.Equal(t, 30*time.Minute, cfg.Jobs.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Jobs.Retention)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.False(t, cfg.Queue.Enabled())
	assert.False(t, cfg.OTel.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PRLENS_ENV", "production")
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GITHUB_API_URL", "https://ghe.example.com/api/v3/")
	t.Setenv("GITLAB_BASE_URL", "https://GitLab.Example.com/")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("FETCH_RATE_LIMIT", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "memory", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Queue.Enabled())
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.APIURL)
	assert.Equal(t, "gitlab.example.com", cfg.GitLabHost())
	assert.Equal(t, "ghe.example.com", cfg.GitHubHost())
	assert.Equal(t, 90*time.Second, cfg.Jobs.Timeout)
	assert.Equal(t, 8, cfg.Jobs.Workers)
	assert.InDelta(t, 2.5, cfg.Fetch.RateLimit, 0.0001)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("PRLENS_ENV", "test")
	t.Setenv("JOB_TIMEOUT", "soon")
	t.Setenv("FILE_CONCURRENCY", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.Timeout)
	assert.Equal(t, 4, cfg.Jobs.FileConcurrency)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("PRLENS_ENV", "test")
	t.Setenv("WORKER_CONCURRENCY", "0")

	_, err := Load()
	assert.Error(t, err)
}
