// Package gitlab connects task synchronization to GitLab issues,
// including self-hosted instances configured via task.gitlab.url.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	gl "github.com/xanzy/go-gitlab"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/types"
)

const defaultBaseURL = "https://gitlab.com"

func init() {
	connector.Register("gitlab", New)
}

type Connector struct {
	token   string
	baseURL string
	pattern *regexp.Regexp
}

// New builds the GitLab connector. The token comes from GITLAB_TOKEN or
// GITLAB_API_TOKEN; the instance URL from GITLAB_URL or the
// task.gitlab.url git config key, defaulting to gitlab.com.
func New(cfg *taskcfg.Config) connector.Connector {
	base := cfg.Get("gitlab.url")
	if base == "" {
		base = defaultBaseURL
	}
	c := newForHost(base)
	c.token = cfg.Get("gitlab.token")
	return c
}

func newForHost(base string) *Connector {
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Connector{
		baseURL: base,
		pattern: regexp.MustCompile(regexp.QuoteMeta(host) + `[/:]((?:[A-Za-z0-9_.-]+/)*[A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`),
	}
}

func (c *Connector) TypeName() string { return "gitlab" }

func (c *Connector) ConfigOptions() []string { return []string{taskcfg.KeyGitlabURL} }

func (c *Connector) MatchRemote(remote string) (connector.Scope, bool) {
	m := c.pattern.FindStringSubmatch(remote)
	if m == nil {
		return connector.Scope{}, false
	}
	return connector.Scope{Owner: m[1], Project: m[2]}, true
}

// projectID is the URL-encoded namespace/project path GitLab accepts in
// place of a numeric project id.
func projectID(scope connector.Scope) string {
	return scope.Owner + "/" + scope.Project
}

func (c *Connector) client() (*gl.Client, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: set GITLAB_TOKEN", connector.ErrNoToken)
	}
	client, err := gl.NewClient(c.token, gl.WithBaseURL(c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("building gitlab client: %w", err)
	}
	return client, nil
}

func (c *Connector) ListTasks(ctx context.Context, scope connector.Scope, opts connector.ListOptions) ([]*types.Task, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}

	listOpts := &gl.ListProjectIssuesOptions{
		ListOptions: gl.ListOptions{PerPage: 100},
	}
	if state := glState(opts.State); state != "" {
		listOpts.State = gl.Ptr(state)
	}
	var tasks []*types.Task
	for {
		issues, resp, err := client.Issues.ListProjectIssues(projectID(scope), listOpts, gl.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}
		for _, issue := range issues {
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
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	iid, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid issue iid %q: %w", id, err)
	}
	issue, resp, err := client.Issues.GetIssue(projectID(scope), iid, gl.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting issue %s: %w", id, err)
	}
	return c.toTask(ctx, client, scope, issue, opts)
}

func (c *Connector) CreateTask(ctx context.Context, scope connector.Scope, task *types.Task) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}
	issue, _, err := client.Issues.CreateIssue(projectID(scope), &gl.CreateIssueOptions{
		Title:       gl.Ptr(task.Prop(types.PropName)),
		Description: gl.Ptr(task.Prop(types.PropDescription)),
	}, gl.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	return strconv.Itoa(issue.IID), nil
}

func (c *Connector) UpdateTask(ctx context.Context, scope connector.Scope, id, name, text string, state connector.TaskState) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	iid, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid issue iid %q: %w", id, err)
	}
	updateOpts := &gl.UpdateIssueOptions{
		Title:       gl.Ptr(name),
		Description: gl.Ptr(text),
	}
	switch state {
	case connector.StateClosed:
		updateOpts.StateEvent = gl.Ptr("close")
	case connector.StateOpen:
		updateOpts.StateEvent = gl.Ptr("reopen")
	}
	if _, _, err := client.Issues.UpdateIssue(projectID(scope), iid, updateOpts, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("updating issue %s: %w", id, err)
	}
	return nil
}

func (c *Connector) DeleteTask(ctx context.Context, scope connector.Scope, id string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	iid, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid issue iid %q: %w", id, err)
	}
	if _, err := client.Issues.DeleteIssue(projectID(scope), iid, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting issue %s: %w", id, err)
	}
	return nil
}

func (c *Connector) CreateComment(ctx context.Context, scope connector.Scope, taskID string, comment *types.Comment) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}
	iid, err := strconv.Atoi(taskID)
	if err != nil {
		return "", fmt.Errorf("invalid issue iid %q: %w", taskID, err)
	}
	note, _, err := client.Notes.CreateIssueNote(projectID(scope), iid, &gl.CreateIssueNoteOptions{
		Body: gl.Ptr(comment.Text),
	}, gl.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("creating note on issue %s: %w", taskID, err)
	}
	return strconv.Itoa(note.ID), nil
}

func (c *Connector) UpdateComment(ctx context.Context, scope connector.Scope, taskID, commentID, text string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	iid, noteID, err := issueAndNote(taskID, commentID)
	if err != nil {
		return err
	}
	if _, _, err := client.Notes.UpdateIssueNote(projectID(scope), iid, noteID, &gl.UpdateIssueNoteOptions{
		Body: gl.Ptr(text),
	}, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("updating note %s: %w", commentID, err)
	}
	return nil
}

func (c *Connector) DeleteComment(ctx context.Context, scope connector.Scope, taskID, commentID string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	iid, noteID, err := issueAndNote(taskID, commentID)
	if err != nil {
		return err
	}
	if _, err := client.Notes.DeleteIssueNote(projectID(scope), iid, noteID, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting note %s: %w", commentID, err)
	}
	return nil
}

func (c *Connector) CreateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	iid, err := strconv.Atoi(taskID)
	if err != nil {
		return fmt.Errorf("invalid issue iid %q: %w", taskID, err)
	}
	if label.Color != "" || label.Description != "" {
		if err := c.ensureLabel(ctx, client, scope, label); err != nil {
			return err
		}
	}
	if _, _, err := client.Issues.UpdateIssue(projectID(scope), iid, &gl.UpdateIssueOptions{
		AddLabels: gl.Ptr(gl.LabelOptions{label.Name}),
	}, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("adding label %q to issue %s: %w", label.Name, taskID, err)
	}
	return nil
}

func (c *Connector) UpdateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	updateOpts := &gl.UpdateLabelOptions{Name: gl.Ptr(label.Name)}
	if label.Color != "" {
		updateOpts.Color = gl.Ptr(normalizeColor(label.Color))
	}
	if label.Description != "" {
		updateOpts.Description = gl.Ptr(label.Description)
	}
	if _, _, err := client.Labels.UpdateLabel(projectID(scope), label.Name, updateOpts, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("updating label %q: %w", label.Name, err)
	}
	return nil
}

func (c *Connector) DeleteLabel(ctx context.Context, scope connector.Scope, taskID, name string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	iid, err := strconv.Atoi(taskID)
	if err != nil {
		return fmt.Errorf("invalid issue iid %q: %w", taskID, err)
	}
	if _, _, err := client.Issues.UpdateIssue(projectID(scope), iid, &gl.UpdateIssueOptions{
		RemoveLabels: gl.Ptr(gl.LabelOptions{name}),
	}, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("removing label %q from issue %s: %w", name, taskID, err)
	}
	return nil
}

func (c *Connector) ensureLabel(ctx context.Context, client *gl.Client, scope connector.Scope, label *types.Label) error {
	createOpts := &gl.CreateLabelOptions{
		Name:  gl.Ptr(label.Name),
		Color: gl.Ptr(normalizeColor(label.Color)),
	}
	if label.Description != "" {
		createOpts.Description = gl.Ptr(label.Description)
	}
	_, resp, err := client.Labels.CreateLabel(projectID(scope), createOpts, gl.WithContext(ctx))
	if err != nil {
		// Conflict means the label already exists project-wide.
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("creating label %q: %w", label.Name, err)
	}
	return nil
}

func (c *Connector) toTask(ctx context.Context, client *gl.Client, scope connector.Scope, issue *gl.Issue, opts connector.ListOptions) (*types.Task, error) {
	task, err := types.NewTask(issue.Title, issue.Description, opts.StatusFor(issue.State == "closed"))
	if err != nil {
		return nil, err
	}
	task.ID = strconv.Itoa(issue.IID)
	if issue.CreatedAt != nil {
		task.SetProperty(types.PropCreated, strconv.FormatInt(issue.CreatedAt.Unix(), 10))
	}
	if issue.Author != nil {
		task.SetProperty(types.PropAuthor, issue.Author.Username)
	}

	if opts.WithLabels {
		for _, name := range issue.Labels {
			task.AddLabel(name, "", "")
		}
	}

	if opts.WithComments {
		listOpts := &gl.ListIssueNotesOptions{ListOptions: gl.ListOptions{PerPage: 100}}
		for {
			notes, resp, err := client.Notes.ListIssueNotes(projectID(scope), issue.IID, listOpts, gl.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("listing notes for issue %d: %w", issue.IID, err)
			}
			for _, note := range notes {
				if note.System {
					continue
				}
				props := map[string]string{types.PropAuthor: note.Author.Username}
				if note.CreatedAt != nil {
					props[types.PropCreated] = strconv.FormatInt(note.CreatedAt.Unix(), 10)
				}
				task.AddComment(strconv.Itoa(note.ID), props, note.Body)
			}
			if resp.NextPage == 0 {
				break
			}
			listOpts.Page = resp.NextPage
		}
	}
	return task, nil
}

func issueAndNote(taskID, commentID string) (int, int, error) {
	iid, err := strconv.Atoi(taskID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid issue iid %q: %w", taskID, err)
	}
	noteID, err := strconv.Atoi(commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid note id %q: %w", commentID, err)
	}
	return iid, noteID, nil
}

// normalizeColor prefixes a bare hex color with '#', which GitLab requires.
func normalizeColor(color string) string {
	if color != "" && !strings.HasPrefix(color, "#") {
		return "#" + color
	}
	return color
}

func glState(state connector.TaskState) string {
	switch state {
	case connector.StateOpen:
		return "opened"
	case connector.StateClosed:
		return "closed"
	default:
		return ""
	}
}
