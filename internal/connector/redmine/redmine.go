// Package redmine connects task synchronization to a Redmine server
// through its REST API.
//
// No Go SDK for Redmine is maintained, so the client is a thin JSON
// layer over net/http. Like Jira, the match is configuration-driven:
// set task.redmine.url (or REDMINE_URL) to the project page, e.g.
// https://redmine.example.com/projects/myproject, and the API key via
// REDMINE_API_KEY or task.redmine.api_key.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/types"
)

func init() {
	connector.Register("redmine", New)
}

const pageSize = 100

type Connector struct {
	apiKey string
	base   string // server root, no trailing slash
	proj   string // project identifier
	http   *http.Client
}

func New(cfg *taskcfg.Config) connector.Connector {
	c := &Connector{
		apiKey: cfg.Get("redmine.api_key"),
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	c.base, c.proj = splitProjectURL(cfg.Get("redmine.url"))
	return c
}

// splitProjectURL separates the server root from the project identifier
// in a URL like https://host/projects/myproject.
func splitProjectURL(raw string) (base, project string) {
	if raw == "" {
		return "", ""
	}
	raw = strings.TrimSuffix(raw, "/")
	if i := strings.Index(raw, "/projects/"); i >= 0 {
		return raw[:i], raw[i+len("/projects/"):]
	}
	return raw, ""
}

func (c *Connector) TypeName() string { return "redmine" }

func (c *Connector) ConfigOptions() []string {
	return []string{taskcfg.KeyRedmineURL, taskcfg.KeyRedmineAPIKey}
}

func (c *Connector) MatchRemote(string) (connector.Scope, bool) {
	if c.base == "" || c.proj == "" {
		return connector.Scope{}, false
	}
	return connector.Scope{Owner: c.base, Project: c.proj}, true
}

// wire types, trimmed to the fields the tracker reads

type issue struct {
	ID          int       `json:"id,omitempty"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      *named    `json:"status,omitempty"`
	Author      *named    `json:"author,omitempty"`
	CreatedOn   string    `json:"created_on,omitempty"`
	Journals    []journal `json:"journals,omitempty"`
}

type named struct {
	ID       int    `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	IsClosed bool   `json:"is_closed,omitempty"`
}

type journal struct {
	ID        int    `json:"id"`
	Notes     string `json:"notes"`
	User      *named `json:"user,omitempty"`
	CreatedOn string `json:"created_on,omitempty"`
}

func (c *Connector) ListTasks(ctx context.Context, scope connector.Scope, opts connector.ListOptions) ([]*types.Task, error) {
	statusFilter := "*"
	switch opts.State {
	case connector.StateOpen:
		statusFilter = "open"
	case connector.StateClosed:
		statusFilter = "closed"
	}

	var tasks []*types.Task
	for offset := 0; ; offset += pageSize {
		var page struct {
			Issues     []issue `json:"issues"`
			TotalCount int     `json:"total_count"`
		}
		path := fmt.Sprintf("/issues.json?project_id=%s&status_id=%s&limit=%d&offset=%d",
			url.QueryEscape(scope.Project), statusFilter, pageSize, offset)
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}
		for i := range page.Issues {
			task, err := c.toTask(ctx, &page.Issues[i], opts)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
			if opts.Limit > 0 && len(tasks) >= opts.Limit {
				return tasks, nil
			}
		}
		if offset+pageSize >= page.TotalCount || len(page.Issues) == 0 {
			break
		}
	}
	return tasks, nil
}

func (c *Connector) GetTask(ctx context.Context, scope connector.Scope, id string, opts connector.ListOptions) (*types.Task, error) {
	var resp struct {
		Issue issue `json:"issue"`
	}
	err := c.do(ctx, http.MethodGet, "/issues/"+url.PathEscape(id)+".json?include=journals", nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting issue %s: %w", id, err)
	}
	return c.fromFetched(&resp.Issue, opts)
}

func (c *Connector) CreateTask(ctx context.Context, scope connector.Scope, task *types.Task) (string, error) {
	body := map[string]interface{}{
		"issue": map[string]interface{}{
			"project_id":  scope.Project,
			"subject":     task.Prop(types.PropName),
			"description": task.Prop(types.PropDescription),
		},
	}
	var resp struct {
		Issue issue `json:"issue"`
	}
	if err := c.do(ctx, http.MethodPost, "/issues.json", body, &resp); err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	return strconv.Itoa(resp.Issue.ID), nil
}

func (c *Connector) UpdateTask(ctx context.Context, scope connector.Scope, id, name, text string, state connector.TaskState) error {
	fields := map[string]interface{}{
		"subject":     name,
		"description": text,
	}
	if state == connector.StateOpen || state == connector.StateClosed {
		statusID, err := c.statusIDFor(ctx, state)
		if err != nil {
			return err
		}
		fields["status_id"] = statusID
	}
	if err := c.do(ctx, http.MethodPut, "/issues/"+url.PathEscape(id)+".json", map[string]interface{}{"issue": fields}, nil); err != nil {
		return fmt.Errorf("updating issue %s: %w", id, err)
	}
	return nil
}

// statusIDFor picks the first issue status on the server matching the
// requested open/closed state. Redmine statuses are server-wide and
// ordered by position, so the first match is the natural target.
func (c *Connector) statusIDFor(ctx context.Context, state connector.TaskState) (int, error) {
	var resp struct {
		Statuses []named `json:"issue_statuses"`
	}
	if err := c.do(ctx, http.MethodGet, "/issue_statuses.json", nil, &resp); err != nil {
		return 0, fmt.Errorf("listing issue statuses: %w", err)
	}
	want := state == connector.StateClosed
	for _, s := range resp.Statuses {
		if s.IsClosed == want {
			return s.ID, nil
		}
	}
	return 0, fmt.Errorf("no issue status on server is %s", state)
}

func (c *Connector) DeleteTask(ctx context.Context, scope connector.Scope, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/issues/"+url.PathEscape(id)+".json", nil, nil); err != nil {
		return fmt.Errorf("deleting issue %s: %w", id, err)
	}
	return nil
}

// CreateComment adds a journal note. Redmine assigns journal ids on the
// server but does not return them from the update call, so the new id is
// read back from the issue's journal list.
func (c *Connector) CreateComment(ctx context.Context, scope connector.Scope, taskID string, comment *types.Comment) (string, error) {
	body := map[string]interface{}{
		"issue": map[string]interface{}{"notes": comment.Text},
	}
	if err := c.do(ctx, http.MethodPut, "/issues/"+url.PathEscape(taskID)+".json", body, nil); err != nil {
		return "", fmt.Errorf("creating note on issue %s: %w", taskID, err)
	}

	var resp struct {
		Issue issue `json:"issue"`
	}
	if err := c.do(ctx, http.MethodGet, "/issues/"+url.PathEscape(taskID)+".json?include=journals", nil, &resp); err != nil {
		return "", fmt.Errorf("reading back journals for issue %s: %w", taskID, err)
	}
	for i := len(resp.Issue.Journals) - 1; i >= 0; i-- {
		if resp.Issue.Journals[i].Notes != "" {
			return strconv.Itoa(resp.Issue.Journals[i].ID), nil
		}
	}
	return "", fmt.Errorf("note created on issue %s but not found in journals", taskID)
}

func (c *Connector) UpdateComment(ctx context.Context, scope connector.Scope, taskID, commentID, text string) error {
	body := map[string]interface{}{
		"journal": map[string]interface{}{"notes": text},
	}
	if err := c.do(ctx, http.MethodPut, "/journals/"+url.PathEscape(commentID)+".json", body, nil); err != nil {
		return fmt.Errorf("updating note %s: %w", commentID, err)
	}
	return nil
}

// DeleteComment blanks the journal's notes, which is how Redmine
// removes a comment while keeping the journal entry for history.
func (c *Connector) DeleteComment(ctx context.Context, scope connector.Scope, taskID, commentID string) error {
	return c.UpdateComment(ctx, scope, taskID, commentID, "")
}

// Redmine has no per-issue labels; categories are a different concept
// and server-administered.
func (c *Connector) CreateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	return fmt.Errorf("%w: redmine has no issue labels", connector.ErrUnsupported)
}

func (c *Connector) UpdateLabel(ctx context.Context, scope connector.Scope, taskID string, label *types.Label) error {
	return fmt.Errorf("%w: redmine has no issue labels", connector.ErrUnsupported)
}

func (c *Connector) DeleteLabel(ctx context.Context, scope connector.Scope, taskID, name string) error {
	return fmt.Errorf("%w: redmine has no issue labels", connector.ErrUnsupported)
}

func (c *Connector) toTask(ctx context.Context, is *issue, opts connector.ListOptions) (*types.Task, error) {
	// List responses omit journals; fetch the issue in full when the
	// caller wants comments.
	if opts.WithComments && len(is.Journals) == 0 {
		var resp struct {
			Issue issue `json:"issue"`
		}
		if err := c.do(ctx, http.MethodGet, "/issues/"+strconv.Itoa(is.ID)+".json?include=journals", nil, &resp); err != nil {
			return nil, fmt.Errorf("getting issue %d: %w", is.ID, err)
		}
		is = &resp.Issue
	}
	return c.fromFetched(is, opts)
}

func (c *Connector) fromFetched(is *issue, opts connector.ListOptions) (*types.Task, error) {
	closed := is.Status != nil && is.Status.IsClosed
	task, err := types.NewTask(is.Subject, is.Description, opts.StatusFor(closed))
	if err != nil {
		return nil, err
	}
	task.ID = strconv.Itoa(is.ID)
	if ts := parseTime(is.CreatedOn); ts != 0 {
		task.SetProperty(types.PropCreated, strconv.FormatInt(ts, 10))
	}
	if is.Author != nil {
		task.SetProperty(types.PropAuthor, is.Author.Name)
	}
	if opts.WithComments {
		for _, j := range is.Journals {
			if j.Notes == "" {
				continue
			}
			props := map[string]string{}
			if j.User != nil {
				props[types.PropAuthor] = j.User.Name
			}
			if ts := parseTime(j.CreatedOn); ts != 0 {
				props[types.PropCreated] = strconv.FormatInt(ts, 10)
			}
			task.AddComment(strconv.Itoa(j.ID), props, j.Notes)
		}
	}
	return task, nil
}

func parseTime(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("redmine returned %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

// do performs one API call against the server root, encoding body as
// JSON when present and decoding the response into out when non-nil.
func (c *Connector) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: set REDMINE_API_KEY", connector.ErrNoToken)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
