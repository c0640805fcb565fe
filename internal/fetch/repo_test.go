package fetch

import (
	"errors"
	"testing"
)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		url  string
		want Repo
	}{
		{"https://github.com/owner/repo", Repo{"github.com", "owner", "repo"}},
		{"https://github.com/owner/repo.git", Repo{"github.com", "owner", "repo"}},
		{"https://github.com/owner/repo/", Repo{"github.com", "owner", "repo"}},
		{"https://github.com/owner/repo/pull/42", Repo{"github.com", "owner", "repo"}},
		{"https://www.github.com/Owner/Repo", Repo{"github.com", "Owner", "Repo"}},
		{"http://github.com/owner/repo", Repo{"github.com", "owner", "repo"}},
		{"github.com/owner/repo", Repo{"github.com", "owner", "repo"}},
		{"owner/repo", Repo{"github.com", "owner", "repo"}},
		{"owner/my.repo", Repo{"github.com", "owner", "my.repo"}},
		{"git@github.com:owner/repo.git", Repo{"github.com", "owner", "repo"}},
		{"https://gitlab.com/group/sub/project", Repo{"gitlab.com", "group/sub", "project"}},
		{"https://gitlab.com/group/project/-/merge_requests/7", Repo{"gitlab.com", "group", "project"}},
		{"git@gitlab.example.com:team/app.git", Repo{"gitlab.example.com", "team", "app"}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseRepo(tt.url)
			if err != nil {
				t.Fatalf("ParseRepo(%q) error: %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ParseRepo(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseRepoInvalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"https://github.com/",
		"https://github.com/owner",
		"ftp://github.com/owner/repo",
		"github.com/owner",
		"not a url",
	} {
		_, err := ParseRepo(raw)
		if err == nil {
			t.Errorf("ParseRepo(%q) expected error", raw)
			continue
		}
		if !errors.Is(err, ErrInvalidRepoURL) {
			t.Errorf("ParseRepo(%q) error %v is not ErrInvalidRepoURL", raw, err)
		}
	}
}

func TestRepoNames(t *testing.T) {
	r := Repo{Host: "gitlab.com", Owner: "group/sub", Name: "project"}
	if r.FullName() != "group/sub/project" {
		t.Errorf("FullName = %q", r.FullName())
	}
	if r.String() != "gitlab.com/group/sub/project" {
		t.Errorf("String = %q", r.String())
	}
	if r.IsGitHub() {
		t.Error("gitlab repo reported as GitHub")
	}
}

func TestErrorIs(t *testing.T) {
	err := error(&Error{Op: "fetching PR diff", Kind: KindNotFound, Status: 404})
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected ErrNotFound")
	}
	if errors.Is(err, ErrAuth) {
		t.Error("did not expect ErrAuth")
	}
	if got := err.Error(); got != "fetching PR diff: not found (status 404)" {
		t.Errorf("Error() = %q", got)
	}

	var fe *Error
	if !errors.As(err, &fe) || fe.Status != 404 {
		t.Errorf("errors.As failed: %v", fe)
	}
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status  int
		limited bool
		want    Kind
	}{
		{404, false, KindNotFound},
		{401, false, KindAuth},
		{403, false, KindAuth},
		{403, true, KindRateLimited},
		{429, false, KindRateLimited},
		{500, false, KindTransport},
		{502, false, KindTransport},
	}
	for _, tt := range tests {
		if got := kindForStatus(tt.status, tt.limited); got != tt.want {
			t.Errorf("kindForStatus(%d, %v) = %v, want %v", tt.status, tt.limited, got, tt.want)
		}
	}
}
