// Package reconcile drives synchronization between the local task store
// and one remote tracker.
//
// Push is local-authoritative: the local status wins, comments are
// merged as a union keyed by remote id, and nothing is ever deleted
// remotely. Pull imports remote state: tasks unknown locally are
// created, tasks that drifted are overwritten with the remote fields,
// and remote deletions are never inferred.
package reconcile

import (
	"context"
	"fmt"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/debug"
	"github.com/gittask/gittask/internal/status"
	"github.com/gittask/gittask/internal/taskstore"
	"github.com/gittask/gittask/internal/types"
)

// Outcome classifies what a push or pull did for one task id.
type Outcome string

const (
	// OutcomeCreated means the task was created on the receiving side.
	OutcomeCreated Outcome = "created"

	// OutcomeUpdated means the receiving side was modified to match.
	OutcomeUpdated Outcome = "updated"

	// OutcomeUpToDate means both sides already agreed; no write was
	// issued anywhere.
	OutcomeUpToDate Outcome = "up to date"

	// OutcomeFailed means the task could not be synchronized; Err on
	// the Result carries the cause.
	OutcomeFailed Outcome = "failed"
)

// Result reports the fate of one task id. RemoteID differs from ID only
// when a push created the task remotely and the provider assigned its
// own id, migrating the local record.
type Result struct {
	ID       string
	RemoteID string
	Outcome  Outcome
	Comments int // comments created remotely (push) or imported (pull)
	Err      error
}

// PushOptions tunes Push.
type PushOptions struct {
	// NoComments suppresses comment synchronization.
	NoComments bool
}

// PullOptions tunes Pull.
type PullOptions struct {
	// IDs restricts the import to the named remote ids. Empty imports
	// everything the state filter admits.
	IDs []string

	// Limit caps the number of imported tasks. 0 means no limit.
	Limit int

	// State filters remote tasks by open/closed.
	State connector.TaskState

	// NoComments and NoLabels suppress the corresponding sub-entities.
	NoComments bool
	NoLabels   bool
}

// Reconciler binds a task store, a status vocabulary and one matched
// connector for the duration of a push or pull run.
type Reconciler struct {
	store    *taskstore.Store
	statuses *status.Manager
	conn     connector.Connector
	scope    connector.Scope
}

func New(store *taskstore.Store, statuses *status.Manager, match connector.Match) *Reconciler {
	return &Reconciler{
		store:    store,
		statuses: statuses,
		conn:     match.Connector,
		scope:    match.Scope,
	}
}

// Push reconciles the named local tasks into the remote tracker. Every
// id yields a Result; a failure on one id never aborts the others.
func (r *Reconciler) Push(ctx context.Context, ids []string, opts PushOptions) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, r.pushOne(ctx, id, opts))
	}
	return results
}

func (r *Reconciler) pushOne(ctx context.Context, id string, opts PushOptions) Result {
	res := Result{ID: id, RemoteID: id}

	local, err := r.store.Find(id)
	if err != nil {
		return fail(res, err)
	}
	if local == nil {
		return fail(res, fmt.Errorf("task %s not found", id))
	}

	listOpts := connector.ListOptions{
		WithComments: !opts.NoComments,
		Statuses:     r.statuses.Vocabulary(),
	}
	remote, err := r.conn.GetTask(ctx, r.scope, id, listOpts)
	if err != nil {
		return fail(res, err)
	}

	if remote == nil {
		debug.Logf("reconcile: push %s -> create on %s", id, r.conn.TypeName())
		return r.pushCreate(ctx, local, opts, res)
	}
	debug.Logf("reconcile: push %s -> update on %s", id, r.conn.TypeName())
	return r.pushUpdate(ctx, local, remote, opts, res)
}

// pushCreate creates the task remotely. When the provider assigns a
// different id, the local record migrates to it so the two sides share
// one name from then on.
func (r *Reconciler) pushCreate(ctx context.Context, local *types.Task, opts PushOptions, res Result) Result {
	remoteID, err := r.conn.CreateTask(ctx, r.scope, local)
	if err != nil {
		return fail(res, err)
	}
	res.RemoteID = remoteID
	res.Outcome = OutcomeCreated

	if remoteID != local.ID {
		if err := r.store.MigrateID(local.ID, remoteID); err != nil {
			return fail(res, fmt.Errorf("task created remotely as %s but local migration failed: %w", remoteID, err))
		}
		local.ID = remoteID
	}

	if r.statuses.IsDone(local.Prop(types.PropStatus)) {
		err := r.conn.UpdateTask(ctx, r.scope, local.ID,
			local.Prop(types.PropName), local.Prop(types.PropDescription), connector.StateClosed)
		if err != nil {
			return fail(res, err)
		}
	}

	if !opts.NoComments {
		n, err := r.pushComments(ctx, local, nil)
		res.Comments = n
		if err != nil {
			return fail(res, err)
		}
	}
	return res
}

// pushUpdate applies the local-authoritative merge to a task that
// exists on both sides. Unsynced comments go out even when the task
// fields already agree; "up to date" means nothing moved at all.
func (r *Reconciler) pushUpdate(ctx context.Context, local, remote *types.Task, opts PushOptions, res Result) Result {
	drifted := local.Prop(types.PropName) != remote.Prop(types.PropName) ||
		local.Prop(types.PropDescription) != remote.Prop(types.PropDescription) ||
		local.Prop(types.PropStatus) != remote.Prop(types.PropStatus)

	if drifted {
		state := connector.StateOpen
		if r.statuses.IsDone(local.Prop(types.PropStatus)) {
			state = connector.StateClosed
		}
		err := r.conn.UpdateTask(ctx, r.scope, local.ID,
			local.Prop(types.PropName), local.Prop(types.PropDescription), state)
		if err != nil {
			return fail(res, err)
		}
	}

	if !opts.NoComments {
		n, err := r.pushComments(ctx, local, remote.Comments)
		res.Comments = n
		if err != nil {
			return fail(res, err)
		}
	}

	if drifted || res.Comments > 0 {
		res.Outcome = OutcomeUpdated
	} else {
		res.Outcome = OutcomeUpToDate
	}
	return res
}

// pushComments creates remotely every local comment whose id is not
// among the remote ones, and records the remote-assigned id on the
// local comment so the next run recognizes it as synced.
func (r *Reconciler) pushComments(ctx context.Context, local *types.Task, remoteComments []*types.Comment) (int, error) {
	seen := make(map[string]bool, len(remoteComments))
	for _, rc := range remoteComments {
		seen[rc.ID] = true
	}

	created := 0
	for _, comment := range local.Comments {
		if seen[comment.ID] {
			continue
		}
		remoteID, err := r.conn.CreateComment(ctx, r.scope, local.ID, comment)
		if err != nil {
			return created, fmt.Errorf("comment %s: %w", comment.ID, err)
		}
		created++
		if remoteID != comment.ID {
			if err := r.store.UpdateCommentID(local.ID, comment.ID, remoteID); err != nil {
				return created, fmt.Errorf("comment created remotely as %s but local rewrite failed: %w", remoteID, err)
			}
			comment.ID = remoteID
		}
	}
	return created, nil
}

// Pull imports remote tasks into the local store. Tasks already present
// locally are overwritten with the remote name, description and status
// when they differ, and left untouched when equal; local-only tasks are
// never deleted.
func (r *Reconciler) Pull(ctx context.Context, opts PullOptions) ([]Result, error) {
	listOpts := connector.ListOptions{
		WithComments: !opts.NoComments,
		WithLabels:   !opts.NoLabels,
		Limit:        opts.Limit,
		State:        opts.State,
		Statuses:     r.statuses.Vocabulary(),
	}

	if len(opts.IDs) > 0 {
		debug.Logf("reconcile: pull %d explicit id(s) from %s", len(opts.IDs), r.conn.TypeName())
		results := make([]Result, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			res := Result{ID: id, RemoteID: id}
			remote, err := r.conn.GetTask(ctx, r.scope, id, listOpts)
			switch {
			case err != nil:
				results = append(results, fail(res, err))
			case remote == nil:
				results = append(results, fail(res, fmt.Errorf("remote task %s not found", id)))
			default:
				results = append(results, r.pullOne(remote))
			}
		}
		return results, nil
	}

	remotes, err := r.conn.ListTasks(ctx, r.scope, listOpts)
	if err != nil {
		return nil, err
	}

	debug.Logf("reconcile: pull %d task(s) from %s", len(remotes), r.conn.TypeName())
	results := make([]Result, 0, len(remotes))
	for _, remote := range remotes {
		results = append(results, r.pullOne(remote))
	}
	return results, nil
}

func (r *Reconciler) pullOne(remote *types.Task) Result {
	res := Result{ID: remote.ID, RemoteID: remote.ID}

	local, err := r.store.Find(remote.ID)
	if err != nil {
		return fail(res, err)
	}

	if local == nil {
		if _, err := r.store.Create(remote); err != nil {
			return fail(res, err)
		}
		res.Outcome = OutcomeCreated
		res.Comments = len(remote.Comments)
		return res
	}

	changed := false
	for _, prop := range []string{types.PropName, types.PropDescription, types.PropStatus} {
		if v := remote.Prop(prop); v != "" && v != local.Prop(prop) {
			local.SetProperty(prop, v)
			changed = true
		}
	}

	seen := make(map[string]bool, len(local.Comments))
	for _, comment := range local.Comments {
		seen[comment.ID] = true
	}
	for _, comment := range remote.Comments {
		if seen[comment.ID] {
			continue
		}
		local.AddComment(comment.ID, comment.Props, comment.Text)
		res.Comments++
		changed = true
	}
	for _, label := range remote.Labels {
		if existing := findLabel(local, label.Name); existing == nil {
			local.AddLabel(label.Name, label.Color, label.Description)
			changed = true
		}
	}

	if !changed {
		res.Outcome = OutcomeUpToDate
		return res
	}
	if err := r.store.Update(local); err != nil {
		return fail(res, err)
	}
	res.Outcome = OutcomeUpdated
	return res
}

func findLabel(task *types.Task, name string) *types.Label {
	for _, l := range task.Labels {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func fail(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}
