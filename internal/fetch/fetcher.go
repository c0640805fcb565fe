// Package fetch retrieves pull request data from GitHub and GitLab.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprite-ai/prlens/internal/model"
)

// Fetcher reads the pieces of a pull request that a review needs.
type Fetcher interface {
	PRMetadata(ctx context.Context, repo Repo, pr int) (*model.PRMetadata, error)
	ChangedFiles(ctx context.Context, repo Repo, pr int) ([]model.ChangedFile, error)
	DiffText(ctx context.Context, repo Repo, pr int) (string, error)
	FileContent(ctx context.Context, repo Repo, path, ref string) (string, error)
}

// Kind classifies a fetch failure.
type Kind int

const (
	KindTransport Kind = iota
	KindNotFound
	KindRateLimited
	KindAuth
)

var (
	ErrTransport   = errors.New("transport error")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrAuth        = errors.New("authentication failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindRateLimited:
		return ErrRateLimited
	case KindAuth:
		return ErrAuth
	default:
		return ErrTransport
	}
}

func (k Kind) String() string {
	return k.sentinel().Error()
}

// Error is returned by every Fetcher method on failure.
type Error struct {
	Op     string
	Kind   Kind
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an Error against the sentinel of its Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// kindForStatus maps an HTTP status to an error kind. rateLimited reports
// whether the provider signalled an exhausted quota on a 403.
func kindForStatus(status int, rateLimited bool) Kind {
	switch {
	case status == 404:
		return KindNotFound
	case status == 429, status == 403 && rateLimited:
		return KindRateLimited
	case status == 401, status == 403:
		return KindAuth
	default:
		return KindTransport
	}
}
