// Package github connects task synchronization to GitHub Issues via the
// REST v3 API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/types"
)

func init() {
	connector.Register("github", New)
}

// remotePattern extracts owner and repository from https and ssh remote
// URLs alike ("https://github.com/owner/repo.git", "git@github.com:owner/repo").
var remotePattern = regexp.MustCompile(`github\.com[/:]([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`)

type Connector struct {
	token string
}

// New builds the GitHub connector. The token comes from GITHUB_TOKEN or
// GITHUB_API_TOKEN; an empty token still matches remotes, so the user
// gets ErrNoToken instead of a silent no-match.
func New(cfg *taskcfg.Config) connector.Connector {
	return &Connector{token: cfg.Get("github.token")}
}

func (c *Connector) TypeName() string { return "github" }

func (c *Connector) ConfigOptions() []string { return nil }

func (c *Connector) MatchRemote(url string) (connector.Scope, bool) {
	m := remotePattern.FindStringSubmatch(url)
	if m == nil {
		return connector.Scope{}, false
	}
	return connector.Scope{Owner: m[1], Project: m[2]}, true
}

func (c *Connector) client(ctx context.Context) (*gh.Client, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: set GITHUB_TOKEN", connector.ErrNoToken)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
	return gh.NewClient(oauth2.NewClient(ctx, ts)), nil
}

func (c *Connector) ListTasks(ctx context.Context, scope connector.Scope, opts connector.ListOptions) ([]*types.Task, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	listOpts := &gh.IssueListByRepoOptions{
		State:       string(stateOrAll(opts.State)),
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var tasks []*types.Task
	for {
		issues, resp, err := client.Issues.ListByRepo(ctx, scope.Owner, scope.Project, listOpts)
		if err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			task, err := c.toTask(ctx, client, scope, issue, opts)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
			if opts.Limit > 0 && len(tasks) >= opts.Limit {
				return tasks, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}
	return tasks, nil
}

func (c *Connector) GetTask(ctx context.Context, scope connector.Scope, id string, opts connector.ListOptions) (*types.Task, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	number, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid issue number %q: %w", id, err)
	}
	issue, resp, err := client.Issues.Get(ctx, scope.Owner, scope.Project, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting issue %s: %w", id, err)
	}
	if issue.IsPullRequest() {
		return nil, nil
	}
	return c.toTask(ctx, client, scope, issue, opts)
}

func (c *Connector) CreateTask(ctx context.Context, scope connector.Scope, task *types.Task) (string, error) {
	client, err := c.client(ctx)
	if err != nil {
		return "", err
	}
	req := &gh.IssueRequest{
		Title: gh.String(task.Prop(types.PropName)),
		Body:  gh.String(task.Prop(types.PropDescription)),
	}
	issue, _, err := client.Issues.Create(ctx, scope.Owner, scope.Project, req)
	if err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	return strconv.Itoa(issue.GetNumber()), nil
}

func (c *Connector) UpdateTask(ctx context.Context, scope connector.Scope, id, name, text string, state connector.TaskState) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid issue number %q: %w", id, err)
	}
	req := &gh.IssueRequest{
		Title: gh.String(name),
		Body:  gh.String(text),
		State: gh.String(string(state)),
	}
	if _, _, err := client.Issues.Edit(ctx, scope.Owner, scope.Project, number, req); err != nil {
		return fmt.Errorf("updating issue %s: %w", id, err)
	}
	return nil
}

// DeleteTask is not available through the REST API; GitHub only deletes
// issues via GraphQL with admin rights.
func (c *Connector) DeleteTask(ctx context.Context, scope connector.Scope, id string) error {
	return fmt.Errorf("%w: github issues cannot be deleted via the REST API", connector.ErrUnsupported)
}

func (c *Connector) CreateComment(ctx context.Context, scope connector.Scope, taskID string, comment *types.Comment) (string, error) {
	client, err := c.client(ctx)
	if err != nil {
		return "", err
	}
	number, err := strconv.Atoi(taskID)
	if err != nil {
		return "", fmt.Errorf("invalid issue number %q: %w", taskID, err)
	}
	created, _, err := client.Issues.CreateComment(ctx, scope.Owner, scope.Project, number, &gh.IssueComment{
		Body: gh.String(comment.Text),
	})
	if err != nil {
		return "", fmt.Errorf("creating comment on issue %s: %w", taskID, err)
	}
	return strconv.FormatInt(created.GetID(), 10), nil
}

func (c *Connector) UpdateComment(ctx context.Context, scope connector.Scope, taskID, commentID, text string) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment id %q: %w", commentID, err)
	}
	if _, _, err := client.Issues.EditComment(ctx, scope.Owner, scope.Project, id, &gh.IssueComment{
		Body: gh.String(text),
	}); err != nil {
		return fmt.Errorf("updating comment %s: %w", commentID, err)
	}
	return nil
}

func (c *Connector) DeleteComment(ctx context.Context, scope connector.Scope, taskID, commentID string) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment id %q: %w", commentID, err)
	}
	if _, err := client.Issues.DeleteComment(ctx, scope.Owner, scope.Project, id); err != nil {
		return fmt.Errorf("deleting comment %s: %w", commentID, err)
	}
	return nil
}

func (c *Connector) CreateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(taskID)
	if err != nil {
		return fmt.Errorf("invalid issue number %q: %w", taskID, err)
	}
	// Ensure the repository label exists with the requested color before
	// attaching it; AddLabelsToIssue creates missing labels with random
	// colors otherwise.
	if label.Color != "" || label.Description != "" {
		if err := c.ensureLabel(ctx, client, scope, label); err != nil {
			return err
		}
	}
	if _, _, err := client.Issues.AddLabelsToIssue(ctx, scope.Owner, scope.Project, number, []string{label.Name}); err != nil {
		return fmt.Errorf("adding label %q to issue %s: %w", label.Name, taskID, err)
	}
	return nil
}

func (c *Connector) UpdateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	if _, _, err := client.Issues.EditLabel(ctx, scope.Owner, scope.Project, label.Name, ghLabel(label)); err != nil {
		return fmt.Errorf("updating label %q: %w", label.Name, err)
	}
	return nil
}

func (c *Connector) DeleteLabel(ctx context.Context, scope connector.Scope, taskID, name string) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(taskID)
	if err != nil {
		return fmt.Errorf("invalid issue number %q: %w", taskID, err)
	}
	if _, err := client.Issues.RemoveLabelForIssue(ctx, scope.Owner, scope.Project, number, name); err != nil {
		return fmt.Errorf("removing label %q from issue %s: %w", name, taskID, err)
	}
	return nil
}

func (c *Connector) ensureLabel(ctx context.Context, client *gh.Client, scope connector.Scope, label *types.Label) error {
	_, resp, err := client.Issues.GetLabel(ctx, scope.Owner, scope.Project, label.Name)
	if err == nil {
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("checking label %q: %w", label.Name, err)
	}
	if _, _, err := client.Issues.CreateLabel(ctx, scope.Owner, scope.Project, ghLabel(label)); err != nil {
		return fmt.Errorf("creating label %q: %w", label.Name, err)
	}
	return nil
}

func (c *Connector) toTask(ctx context.Context, client *gh.Client, scope connector.Scope, issue *gh.Issue, opts connector.ListOptions) (*types.Task, error) {
	task, err := types.NewTask(issue.GetTitle(), issue.GetBody(), opts.StatusFor(issue.GetState() == "closed"))
	if err != nil {
		return nil, err
	}
	task.ID = strconv.Itoa(issue.GetNumber())
	task.SetProperty(types.PropCreated, strconv.FormatInt(issue.GetCreatedAt().Unix(), 10))
	if login := issue.GetUser().GetLogin(); login != "" {
		task.SetProperty(types.PropAuthor, login)
	}

	if opts.WithLabels {
		for _, l := range issue.Labels {
			task.AddLabel(l.GetName(), l.GetColor(), l.GetDescription())
		}
	}

	if opts.WithComments {
		listOpts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
		for {
			comments, resp, err := client.Issues.ListComments(ctx, scope.Owner, scope.Project, issue.GetNumber(), listOpts)
			if err != nil {
				return nil, fmt.Errorf("listing comments for issue %d: %w", issue.GetNumber(), err)
			}
			for _, cm := range comments {
				task.AddComment(strconv.FormatInt(cm.GetID(), 10), map[string]string{
					types.PropCreated: strconv.FormatInt(cm.GetCreatedAt().Unix(), 10),
					types.PropAuthor:  cm.GetUser().GetLogin(),
				}, cm.GetBody())
			}
			if resp.NextPage == 0 {
				break
			}
			listOpts.Page = resp.NextPage
		}
	}
	return task, nil
}

func ghLabel(label *types.Label) *gh.Label {
	l := &gh.Label{Name: gh.String(label.Name)}
	if label.Color != "" {
		l.Color = gh.String(label.Color)
	}
	if label.Description != "" {
		l.Description = gh.String(label.Description)
	}
	return l
}

func stateOrAll(state connector.TaskState) connector.TaskState {
	if state == "" {
		return connector.StateAll
	}
	return state
}
