package github

import (
	"context"
	"errors"
	"testing"

	"github.com/gittask/gittask/internal/connector"
)

func TestMatchRemote(t *testing.T) {
	c := &Connector{}

	tests := []struct {
		url     string
		owner   string
		project string
	}{
		{"https://github.com/octocat/hello-world.git", "octocat", "hello-world"},
		{"https://github.com/octocat/hello-world", "octocat", "hello-world"},
		{"git@github.com:octocat/hello-world.git", "octocat", "hello-world"},
		{"ssh://git@github.com/octocat/hello.world.git", "octocat", "hello.world"},
	}
	for _, tt := range tests {
		scope, ok := c.MatchRemote(tt.url)
		if !ok {
			t.Errorf("MatchRemote(%q) did not match", tt.url)
			continue
		}
		if scope.Owner != tt.owner || scope.Project != tt.project {
			t.Errorf("MatchRemote(%q) = %+v, want %s/%s", tt.url, scope, tt.owner, tt.project)
		}
	}

	for _, url := range []string{
		"https://gitlab.com/owner/repo.git",
		"https://example.com/owner/repo.git",
		"",
	} {
		if _, ok := c.MatchRemote(url); ok {
			t.Errorf("MatchRemote(%q) matched, should not", url)
		}
	}
}

func TestClientRequiresToken(t *testing.T) {
	c := &Connector{}
	_, err := c.client(context.Background())
	if !errors.Is(err, connector.ErrNoToken) {
		t.Errorf("got %v, want ErrNoToken", err)
	}
}
