// Package taskcfg builds the configuration context threaded through the
// store, the connectors and the reconciler. Values come from two places,
// merged at load time: the repository's own git configuration (the
// task.* keys) and the environment (provider tokens and URLs). The
// environment wins, so a token never has to be written into git config.
package taskcfg

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/gittask/gittask/internal/objstore"
	"github.com/gittask/gittask/internal/status"
)

// Git configuration keys consumed by the tracker.
const (
	KeyRef           = "task.ref"
	KeyStatuses      = "task.statuses"
	KeyProperties    = "task.properties"
	KeyListColumns   = "task.list.columns"
	KeyListSort      = "task.list.sort"
	KeyGitlabURL     = "task.gitlab.url"
	KeyJiraURL       = "task.jira.url"
	KeyJiraProject   = "task.jira.project"
	KeyRedmineURL    = "task.redmine.url"
	KeyRedmineAPIKey = "task.redmine.api_key"
)

// gitKeys maps git configuration keys to their internal names.
var gitKeys = map[string]string{
	KeyStatuses:      "statuses",
	KeyProperties:    "properties",
	KeyListColumns:   "list.columns",
	KeyListSort:      "list.sort",
	KeyGitlabURL:     "gitlab.url",
	KeyJiraURL:       "jira.url",
	KeyJiraProject:   "jira.project",
	KeyRedmineURL:    "redmine.url",
	KeyRedmineAPIKey: "redmine.api_key",
	"color.ui":       "color.ui",
}

// envBindings maps internal names to their environment fallback chains.
// The first set variable wins within a chain.
var envBindings = map[string][]string{
	"github.token":    {"GITHUB_TOKEN", "GITHUB_API_TOKEN"},
	"gitlab.token":    {"GITLAB_TOKEN", "GITLAB_API_TOKEN"},
	"gitlab.url":      {"GITLAB_URL"},
	"jira.token":      {"JIRA_TOKEN", "JIRA_API_TOKEN"},
	"jira.user":       {"JIRA_USER", "JIRA_EMAIL"},
	"jira.url":        {"JIRA_URL", "JIRA_BASE_URL"},
	"jira.project":    {"JIRA_PROJECT", "JIRA_PROJECT_KEY"},
	"redmine.api_key": {"REDMINE_API_KEY", "REDMINE_TOKEN"},
	"redmine.url":     {"REDMINE_URL"},
}

// Config is an immutable snapshot of the merged configuration. Construct
// it once per invocation with Load and pass it down explicitly; nothing
// in this module reads process-wide state after the snapshot is taken.
type Config struct {
	v   *viper.Viper
	obj *objstore.Store
}

// Load reads the repository configuration and binds the environment
// fallback chains.
func Load(obj *objstore.Store) (*Config, error) {
	v := viper.New()
	for name, envs := range envBindings {
		args := append([]string{name}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
	}
	for gitKey, name := range gitKeys {
		val, err := obj.ConfigValue(gitKey)
		if err != nil {
			return nil, err
		}
		if val != "" {
			v.SetDefault(name, val)
		}
	}
	return &Config{v: v, obj: obj}, nil
}

// Get returns the merged value for an internal name such as
// "gitlab.token" or "redmine.url". Empty when unset everywhere.
func (c *Config) Get(name string) string {
	return c.v.GetString(name)
}

// Set persists a git configuration key to the repository and refreshes
// the snapshot's default for it.
func (c *Config) Set(gitKey, value string) error {
	if err := c.obj.SetConfigValue(gitKey, value); err != nil {
		return err
	}
	if name, ok := gitKeys[gitKey]; ok {
		c.v.SetDefault(name, value)
	}
	return nil
}

// GetKey returns the effective value for a git configuration key, and
// whether the key is one the tracker understands.
func (c *Config) GetKey(gitKey string) (string, bool) {
	name, ok := gitKeys[gitKey]
	if !ok {
		return "", false
	}
	return c.Get(name), true
}

// Keys returns the git configuration keys the tracker understands,
// sorted.
func Keys() []string {
	keys := make([]string, 0, len(gitKeys))
	for k := range gitKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Statuses builds the status manager from the configured vocabulary.
func (c *Config) Statuses() *status.Manager {
	return status.NewManager(c.Get("statuses"))
}

// ListColumns returns the configured task list columns.
func (c *Config) ListColumns() string {
	if v := c.Get("list.columns"); v != "" {
		return v
	}
	return "id, created, status, name"
}

// ListSort returns the configured task list sort order.
func (c *Config) ListSort() string {
	if v := c.Get("list.sort"); v != "" {
		return v
	}
	return "id desc"
}

// ColorEnabled reports whether colored output is allowed by git config
// (color.ui). The NO_COLOR convention is handled at the rendering layer.
func (c *Config) ColorEnabled() bool {
	return c.Get("color.ui") != "false"
}
