// Package jira connects task synchronization to Jira issues.
//
// Jira has no relationship to the repository's git remotes, so the
// match is configuration-driven: the connector engages only when both
// task.jira.url (or JIRA_URL) and task.jira.project (or JIRA_PROJECT)
// are set. Cloud instances authenticate with email plus API token
// (JIRA_USER + JIRA_TOKEN); self-hosted instances with a personal
// access token alone.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gojira "github.com/andygrunwald/go-jira"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/types"
)

func init() {
	connector.Register("jira", New)
}

type Connector struct {
	baseURL string
	user    string
	token   string
	project string
}

func New(cfg *taskcfg.Config) connector.Connector {
	return &Connector{
		baseURL: cfg.Get("jira.url"),
		user:    cfg.Get("jira.user"),
		token:   cfg.Get("jira.token"),
		project: cfg.Get("jira.project"),
	}
}

func (c *Connector) TypeName() string { return "jira" }

func (c *Connector) ConfigOptions() []string {
	return []string{taskcfg.KeyJiraURL, taskcfg.KeyJiraProject}
}

// MatchRemote ignores the remote URL: Jira issues live next to no git
// hosting, so presence of the instance URL and project key is the match.
func (c *Connector) MatchRemote(string) (connector.Scope, bool) {
	if c.baseURL == "" || c.project == "" {
		return connector.Scope{}, false
	}
	host := c.baseURL
	if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return connector.Scope{Owner: host, Project: c.project}, true
}

func (c *Connector) client() (*gojira.Client, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: set JIRA_TOKEN", connector.ErrNoToken)
	}
	var httpClient *http.Client
	if c.user != "" {
		tp := gojira.BasicAuthTransport{Username: c.user, Password: c.token}
		httpClient = tp.Client()
	} else {
		tp := gojira.PATAuthTransport{Token: c.token}
		httpClient = tp.Client()
	}
	client, err := gojira.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("building jira client: %w", err)
	}
	return client, nil
}

func (c *Connector) ListTasks(ctx context.Context, scope connector.Scope, opts connector.ListOptions) ([]*types.Task, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}

	jql := fmt.Sprintf("project = %q", scope.Project)
	switch opts.State {
	case connector.StateOpen:
		jql += " AND statusCategory != Done"
	case connector.StateClosed:
		jql += " AND statusCategory = Done"
	}
	jql += " ORDER BY created ASC"

	searchOpts := &gojira.SearchOptions{MaxResults: 100}
	var tasks []*types.Task
	for {
		issues, resp, err := client.Issue.SearchWithContext(ctx, jql, searchOpts)
		if err != nil {
			return nil, fmt.Errorf("searching issues: %w", err)
		}
		for i := range issues {
			task, err := c.toTask(&issues[i], opts)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
			if opts.Limit > 0 && len(tasks) >= opts.Limit {
				return tasks, nil
			}
		}
		searchOpts.StartAt += len(issues)
		if searchOpts.StartAt >= resp.Total || len(issues) == 0 {
			break
		}
	}
	return tasks, nil
}

func (c *Connector) GetTask(ctx context.Context, scope connector.Scope, id string, opts connector.ListOptions) (*types.Task, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	issue, resp, err := client.Issue.GetWithContext(ctx, c.issueKey(scope, id), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting issue %s: %w", id, err)
	}
	return c.toTask(issue, opts)
}

func (c *Connector) CreateTask(ctx context.Context, scope connector.Scope, task *types.Task) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}
	issue, _, err := client.Issue.CreateWithContext(ctx, &gojira.Issue{
		Fields: &gojira.IssueFields{
			Project:     gojira.Project{Key: scope.Project},
			Type:        gojira.IssueType{Name: "Task"},
			Summary:     task.Prop(types.PropName),
			Description: task.Prop(types.PropDescription),
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	return issueNumber(issue.Key), nil
}

func (c *Connector) UpdateTask(ctx context.Context, scope connector.Scope, id, name, text string, state connector.TaskState) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	key := c.issueKey(scope, id)
	if _, err := client.Issue.UpdateIssueWithContext(ctx, key, map[string]interface{}{
		"fields": map[string]interface{}{
			"summary":     name,
			"description": text,
		},
	}); err != nil {
		return fmt.Errorf("updating issue %s: %w", id, err)
	}
	if state == connector.StateOpen || state == connector.StateClosed {
		if err := c.transition(ctx, client, key, state); err != nil {
			return err
		}
	}
	return nil
}

// transition moves the issue along its workflow to a status whose
// category matches the requested open/closed state. Workflows differ per
// project, so the target is picked by category, not by name.
func (c *Connector) transition(ctx context.Context, client *gojira.Client, key string, state connector.TaskState) error {
	issue, _, err := client.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("getting issue %s: %w", key, err)
	}
	closed := issue.Fields.Status != nil && issue.Fields.Status.StatusCategory.Key == "done"
	if closed == (state == connector.StateClosed) {
		return nil
	}

	transitions, _, err := client.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return fmt.Errorf("listing transitions for %s: %w", key, err)
	}
	for _, t := range transitions {
		done := t.To.StatusCategory.Key == "done"
		if done == (state == connector.StateClosed) {
			if _, err := client.Issue.DoTransitionWithContext(ctx, key, t.ID); err != nil {
				return fmt.Errorf("transitioning %s: %w", key, err)
			}
			return nil
		}
	}
	return fmt.Errorf("no workflow transition moves %s to %s", key, state)
}

func (c *Connector) DeleteTask(ctx context.Context, scope connector.Scope, id string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if _, err := client.Issue.DeleteWithContext(ctx, c.issueKey(scope, id)); err != nil {
		return fmt.Errorf("deleting issue %s: %w", id, err)
	}
	return nil
}

func (c *Connector) CreateComment(ctx context.Context, scope connector.Scope, taskID string, comment *types.Comment) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}
	created, _, err := client.Issue.AddCommentWithContext(ctx, c.issueKey(scope, taskID), &gojira.Comment{
		Body: comment.Text,
	})
	if err != nil {
		return "", fmt.Errorf("creating comment on issue %s: %w", taskID, err)
	}
	return created.ID, nil
}

func (c *Connector) UpdateComment(ctx context.Context, scope connector.Scope, taskID, commentID, text string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if _, _, err := client.Issue.UpdateCommentWithContext(ctx, c.issueKey(scope, taskID), &gojira.Comment{
		ID:   commentID,
		Body: text,
	}); err != nil {
		return fmt.Errorf("updating comment %s: %w", commentID, err)
	}
	return nil
}

func (c *Connector) DeleteComment(ctx context.Context, scope connector.Scope, taskID, commentID string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := client.Issue.DeleteCommentWithContext(ctx, c.issueKey(scope, taskID), commentID); err != nil {
		return fmt.Errorf("deleting comment %s: %w", commentID, err)
	}
	return nil
}

// CreateLabel adds a label to the issue. Jira labels are bare strings;
// color and description are dropped.
func (c *Connector) CreateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	return c.editLabels(ctx, scope, taskID, "add", label.Name)
}

// UpdateLabel is meaningless for Jira: labels carry no color or
// description to update.
func (c *Connector) UpdateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	return fmt.Errorf("%w: jira labels have no attributes to update", connector.ErrUnsupported)
}

func (c *Connector) DeleteLabel(ctx context.Context, scope connector.Scope, taskID, name string) error {
	return c.editLabels(ctx, scope, taskID, "remove", name)
}

func (c *Connector) editLabels(ctx context.Context, scope connector.Scope, taskID, op, name string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if _, err := client.Issue.UpdateIssueWithContext(ctx, c.issueKey(scope, taskID), map[string]interface{}{
		"update": map[string]interface{}{
			"labels": []map[string]interface{}{{op: name}},
		},
	}); err != nil {
		return fmt.Errorf("%s label %q on issue %s: %w", op, name, taskID, err)
	}
	return nil
}

// issueKey rebuilds the PROJECT-N key from a bare task id. Full keys
// pass through untouched.
func (c *Connector) issueKey(scope connector.Scope, id string) string {
	if _, err := strconv.Atoi(id); err == nil {
		return scope.Project + "-" + id
	}
	return id
}

// issueNumber strips the project prefix so local ids stay numeric.
func issueNumber(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '-' {
			return key[i+1:]
		}
	}
	return key
}

func (c *Connector) toTask(issue *gojira.Issue, opts connector.ListOptions) (*types.Task, error) {
	fields := issue.Fields
	closed := fields.Status != nil && fields.Status.StatusCategory.Key == "done"
	task, err := types.NewTask(fields.Summary, fields.Description, opts.StatusFor(closed))
	if err != nil {
		return nil, err
	}
	task.ID = issueNumber(issue.Key)
	if created := time.Time(fields.Created); !created.IsZero() {
		task.SetProperty(types.PropCreated, strconv.FormatInt(created.Unix(), 10))
	}
	if fields.Reporter != nil {
		task.SetProperty(types.PropAuthor, fields.Reporter.DisplayName)
	}

	if opts.WithLabels {
		for _, name := range fields.Labels {
			task.AddLabel(name, "", "")
		}
	}

	if opts.WithComments && fields.Comments != nil {
		for _, cm := range fields.Comments.Comments {
			task.AddComment(cm.ID, map[string]string{
				types.PropAuthor: cm.Author.DisplayName,
			}, cm.Body)
		}
	}
	return task, nil
}
