// Package connector defines the capability a remote issue tracker must
// implement to participate in synchronization, and the registry that
// matches a repository's remotes to the known providers.
//
// Providers register themselves from init() in their own packages
// (connector/github, connector/gitlab, connector/jira, connector/redmine),
// mirroring how VCS backends plug into a strategy registry. The core
// never imports a provider package; the CLI imports them for side effect.
package connector

import (
	"context"

	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/types"
)

// TaskState is the provider-independent open/closed filter and target
// state. Providers map it to their native representation.
type TaskState string

const (
	StateAll    TaskState = "all"
	StateOpen   TaskState = "open"
	StateClosed TaskState = "closed"
)

// Scope identifies where a connector operates within its provider: the
// owner and repository for GitHub and GitLab, the workspace domain and
// project key for Jira, the server URL and project for Redmine. It is
// opaque to everything except the connector that produced it.
type Scope struct {
	Owner   string
	Project string
}

// ListOptions controls remote task listing and retrieval.
type ListOptions struct {
	// WithComments fetches each task's comments.
	WithComments bool

	// WithLabels fetches each task's labels.
	WithLabels bool

	// Limit caps the number of results. 0 means no limit.
	Limit int

	// State filters by open/closed. Ignored by GetTask.
	State TaskState

	// Statuses is the local status vocabulary as [open, closed]; remote
	// states are translated into these names so pulled tasks speak the
	// local dialect.
	Statuses []string
}

// StatusFor translates a remote open/closed flag into the local status
// vocabulary carried in Statuses.
func (o ListOptions) StatusFor(closed bool) string {
	open, done := "OPEN", "CLOSED"
	if len(o.Statuses) == 2 {
		open, done = o.Statuses[0], o.Statuses[1]
	}
	if closed {
		return done
	}
	return open
}

// Connector is implemented once per remote provider. Every remote call
// is synchronous and fallible; errors carry a human-readable cause and
// are never retried by the core.
type Connector interface {
	// TypeName identifies the provider ("github", "gitlab", ...). Used
	// for the --connector filter and in error messages.
	TypeName() string

	// ConfigOptions lists the git configuration keys this provider
	// understands, for `gittask config list`.
	ConfigOptions() []string

	// MatchRemote reports whether this provider serves the remote URL,
	// and the scope to thread through every later call.
	MatchRemote(url string) (Scope, bool)

	// ListTasks returns remote tasks matching the options.
	ListTasks(ctx context.Context, scope Scope, opts ListOptions) ([]*types.Task, error)

	// GetTask returns one remote task, or nil when it does not exist.
	GetTask(ctx context.Context, scope Scope, id string, opts ListOptions) (*types.Task, error)

	// CreateTask creates a remote task and returns the id the provider
	// assigned to it.
	CreateTask(ctx context.Context, scope Scope, task *types.Task) (string, error)

	// UpdateTask pushes name, description and open/closed state of an
	// existing remote task.
	UpdateTask(ctx context.Context, scope Scope, id, name, text string, state TaskState) error

	// DeleteTask removes a remote task.
	DeleteTask(ctx context.Context, scope Scope, id string) error

	// CreateComment adds a comment to a remote task and returns the
	// remote comment id.
	CreateComment(ctx context.Context, scope Scope, taskID string, comment *types.Comment) (string, error)

	// UpdateComment replaces a remote comment's text.
	UpdateComment(ctx context.Context, scope Scope, taskID, commentID, text string) error

	// DeleteComment removes a remote comment.
	DeleteComment(ctx context.Context, scope Scope, taskID, commentID string) error

	// CreateLabel attaches a label to a remote task.
	CreateLabel(ctx context.Context, scope Scope, taskID string, label *types.Label) error

	// UpdateLabel updates a label's color or description.
	UpdateLabel(ctx context.Context, scope Scope, taskID string, label *types.Label) error

	// DeleteLabel detaches a label from a remote task.
	DeleteLabel(ctx context.Context, scope Scope, taskID, name string) error
}

// Constructor builds a provider connector from the configuration
// context. Called once per invocation by the registry.
type Constructor func(cfg *taskcfg.Config) Connector
