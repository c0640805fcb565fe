// Package config loads prlens settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel     OTelConfig
	Store    StoreConfig
	Queue    QueueConfig
	GitHub   GitHubConfig
	GitLab   GitLabConfig
	Fetch    FetchConfig
	Jobs     JobsConfig
	Env      string
	Addr     string
	LogLevel string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// StoreConfig selects the job store. DatabaseURL is "memory",
// "sqlite:<path>" or a postgres:// DSN.
type StoreConfig struct {
	DatabaseURL string
}

type QueueConfig struct {
	RedisURL      string
	RedisStream   string
	RedisGroup    string
	RedisConsumer string
}

type GitHubConfig struct {
	Token  string
	APIURL string
}

type GitLabConfig struct {
	Token   string
	BaseURL string
}

type FetchConfig struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, shared per client
	Burst     int
}

type JobsConfig struct {
	Timeout         time.Duration
	Workers         int
	FileConcurrency int
	Retention       time.Duration
	SweepInterval   time.Duration
}

// Load reads configuration from the environment. In development a .env file
// in the working directory is loaded first when present.
func Load() (Config, error) {
	if getEnv("PRLENS_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:      getEnv("PRLENS_ENV", "development"),
		Addr:     getEnv("PRLENS_ADDR", ":8000"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "prlens"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Store: StoreConfig{
			DatabaseURL: getEnv("DATABASE_URL", "sqlite:./prlens.db"),
		},
		Queue: QueueConfig{
			RedisURL:      getEnv("REDIS_URL", ""),
			RedisStream:   getEnv("REDIS_STREAM", "prlens_jobs"),
			RedisGroup:    getEnv("REDIS_CONSUMER_GROUP", "prlens_workers"),
			RedisConsumer: getEnv("REDIS_CONSUMER_NAME", hostname()),
		},
		GitHub: GitHubConfig{
			Token:  getEnv("GITHUB_TOKEN", ""),
			APIURL: strings.TrimRight(getEnv("GITHUB_API_URL", "https://api.github.com"), "/"),
		},
		GitLab: GitLabConfig{
			Token:   getEnv("GITLAB_TOKEN", ""),
			BaseURL: strings.TrimRight(getEnv("GITLAB_BASE_URL", "https://gitlab.com"), "/"),
		},
		Fetch: FetchConfig{
			Timeout:   getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
			RateLimit: getEnvFloat("FETCH_RATE_LIMIT", 10),
			Burst:     getEnvInt("FETCH_BURST", 5),
		},
		Jobs: JobsConfig{
			Timeout:         getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
			Workers:         getEnvInt("WORKER_CONCURRENCY", 4),
			FileConcurrency: getEnvInt("FILE_CONCURRENCY", 4),
			Retention:       getEnvDuration("JOB_RETENTION", 7*24*time.Hour),
			SweepInterval:   getEnvDuration("SWEEP_INTERVAL", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Jobs.Timeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Jobs.FileConcurrency < 1 {
		return fmt.Errorf("FILE_CONCURRENCY must be at least 1")
	}
	if c.Fetch.RateLimit <= 0 || c.Fetch.Burst < 1 {
		return fmt.Errorf("FETCH_RATE_LIMIT and FETCH_BURST must be positive")
	}
	if c.Store.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Enabled reports whether jobs go through Redis instead of the in-process queue.
func (c QueueConfig) Enabled() bool {
	return c.RedisURL != ""
}

// GitLabHost returns the host name of the configured GitLab instance.
func (c Config) GitLabHost() string {
	return hostOf(c.GitLab.BaseURL)
}

// GitHubHost returns the web host served by the configured GitHub API:
// github.com for api.github.com, the API host itself for GitHub Enterprise.
func (c Config) GitHubHost() string {
	host := hostOf(c.GitHub.APIURL)
	if host == "api.github.com" {
		return "github.com"
	}
	return host
}

func hostOf(rawURL string) string {
	host := strings.TrimPrefix(rawURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "prlens-worker"
	}
	return name
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
