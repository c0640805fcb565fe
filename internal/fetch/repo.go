package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const githubHost = "github.com"

// ErrInvalidRepoURL is returned by ParseRepo for URLs it cannot interpret.
var ErrInvalidRepoURL = errors.New("invalid repository URL")

// Repo identifies a repository on a code host. Owner holds the full
// namespace, so GitLab subgroups appear as "group/sub".
type Repo struct {
	Host  string
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repo) String() string {
	return r.Host + "/" + r.FullName()
}

// IsGitHub reports whether the repository lives on github.com.
func (r Repo) IsGitHub() bool {
	return r.Host == githubHost
}

var (
	sshRemoteRe = regexp.MustCompile(`^[^@\s]+@([^:\s]+):(.+)$`)
	shorthandRe = regexp.MustCompile(`^[\w-]+/[\w.-]+$`)
)

// ParseRepo extracts the host and namespace from a repository URL. It
// accepts https URLs, ssh remotes (git@host:owner/name.git) and the
// "owner/name" shorthand for github.com. A URL without a scheme is read as
// https and a trailing .git is stripped. For github.com anything after
// owner/name (such as /pull/5) is ignored; other hosts keep the full path up
// to a "/-/" route separator.
func ParseRepo(raw string) (Repo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repo{}, fmt.Errorf("%w: empty", ErrInvalidRepoURL)
	}

	var host, path string
	switch {
	case shorthandRe.MatchString(raw):
		host, path = githubHost, raw
	case sshRemoteRe.MatchString(raw) && !strings.Contains(raw, "://"):
		m := sshRemoteRe.FindStringSubmatch(raw)
		host, path = m[1], m[2]
	default:
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return Repo{}, fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return Repo{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepoURL, u.Scheme)
		}
		host, path = u.Hostname(), u.Path
	}

	host = strings.ToLower(host)
	if host == "www."+githubHost {
		host = githubHost
	}
	if host == "" {
		return Repo{}, fmt.Errorf("%w: missing host in %q", ErrInvalidRepoURL, raw)
	}

	if i := strings.Index(path, "/-/"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Repo{}, fmt.Errorf("%w: %q has no owner/name", ErrInvalidRepoURL, raw)
	}

	if host == githubHost {
		return Repo{Host: host, Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}, nil
	}
	return Repo{
		Host:  host,
		Owner: strings.Join(parts[:len(parts)-1], "/"),
		Name:  parts[len(parts)-1],
	}, nil
}
