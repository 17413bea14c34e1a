package reconcile

import (
	"context"
	"strconv"
	"testing"

	"github.com/go-git/go-git/v5"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/objstore"
	"github.com/gittask/gittask/internal/status"
	"github.com/gittask/gittask/internal/taskstore"
	"github.com/gittask/gittask/internal/types"
)

// fakeConnector is an in-memory tracker that counts its mutating calls.
type fakeConnector struct {
	tasks  map[string]*types.Task
	nextID int

	taskCreates    int
	taskUpdates    int
	commentCreates int
	lastState      connector.TaskState
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{tasks: map[string]*types.Task{}, nextID: 100}
}

func (f *fakeConnector) TypeName() string        { return "fake" }
func (f *fakeConnector) ConfigOptions() []string { return nil }
func (f *fakeConnector) MatchRemote(string) (connector.Scope, bool) {
	return connector.Scope{Owner: "o", Project: "p"}, true
}

func (f *fakeConnector) ListTasks(_ context.Context, _ connector.Scope, opts connector.ListOptions) ([]*types.Task, error) {
	var out []*types.Task
	for _, task := range f.tasks {
		if opts.State == connector.StateOpen && task.Prop(types.PropStatus) == "CLOSED" {
			continue
		}
		if opts.State == connector.StateClosed && task.Prop(types.PropStatus) != "CLOSED" {
			continue
		}
		out = append(out, task.Clone())
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeConnector) GetTask(_ context.Context, _ connector.Scope, id string, _ connector.ListOptions) (*types.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return task.Clone(), nil
}

func (f *fakeConnector) CreateTask(_ context.Context, _ connector.Scope, task *types.Task) (string, error) {
	f.taskCreates++
	id := strconv.Itoa(f.nextID)
	f.nextID++
	cp := task.Clone()
	cp.ID = id
	cp.Comments = nil
	cp.SetProperty(types.PropStatus, "OPEN")
	f.tasks[id] = cp
	return id, nil
}

func (f *fakeConnector) UpdateTask(_ context.Context, _ connector.Scope, id, name, text string, state connector.TaskState) error {
	f.taskUpdates++
	f.lastState = state
	task := f.tasks[id]
	task.SetProperty(types.PropName, name)
	task.SetProperty(types.PropDescription, text)
	if state == connector.StateClosed {
		task.SetProperty(types.PropStatus, "CLOSED")
	} else {
		task.SetProperty(types.PropStatus, "OPEN")
	}
	return nil
}

func (f *fakeConnector) DeleteTask(_ context.Context, _ connector.Scope, id string) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeConnector) CreateComment(_ context.Context, _ connector.Scope, taskID string, comment *types.Comment) (string, error) {
	f.commentCreates++
	id := "rc-" + strconv.Itoa(f.nextID)
	f.nextID++
	f.tasks[taskID].AddComment(id, comment.Props, comment.Text)
	return id, nil
}

func (f *fakeConnector) UpdateComment(_ context.Context, _ connector.Scope, _, _, _ string) error {
	return nil
}
func (f *fakeConnector) DeleteComment(_ context.Context, _ connector.Scope, _, _ string) error {
	return nil
}
func (f *fakeConnector) CreateLabel(_ context.Context, _ connector.Scope, _ string, _ *types.Label) error {
	return nil
}
func (f *fakeConnector) UpdateLabel(_ context.Context, _ connector.Scope, _ string, _ *types.Label) error {
	return nil
}
func (f *fakeConnector) DeleteLabel(_ context.Context, _ connector.Scope, _, _ string) error {
	return nil
}

func newTestStore(t *testing.T) *taskstore.Store {
	t.Helper()
	repo, err := git.PlainInit(t.TempDir(), false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	cfg.User.Name = "Test User"
	cfg.User.Email = "test@example.com"
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return taskstore.New(objstore.New(repo))
}

func newReconciler(t *testing.T) (*Reconciler, *taskstore.Store, *fakeConnector) {
	t.Helper()
	store := newTestStore(t)
	fake := newFakeConnector()
	rec := New(store, status.NewManager(""), connector.Match{
		Connector: fake,
		Scope:     connector.Scope{Owner: "o", Project: "p"},
	})
	return rec, store, fake
}

func createLocal(t *testing.T, store *taskstore.Store, name, st string) *types.Task {
	t.Helper()
	task, err := types.NewTask(name, "", st)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if _, err := store.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return task
}

func TestPushCreatesRemoteAndMigratesID(t *testing.T) {
	rec, store, fake := newReconciler(t)
	task := createLocal(t, store, "Fix bug", "OPEN")
	task.AddComment("", nil, "a note")
	if err := store.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	results := rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	res := results[0]
	if res.Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
	}
	if res.RemoteID != "100" {
		t.Errorf("remote id = %q, want 100", res.RemoteID)
	}

	// Local record now lives under the remote id.
	if old, _ := store.Find("1"); old != nil {
		t.Error("local record still under old id after migration")
	}
	migrated, _ := store.Find("100")
	if migrated == nil {
		t.Fatal("local record missing under remote id")
	}

	// The comment went out and its remote id came back.
	if fake.commentCreates != 1 {
		t.Errorf("comment creates = %d, want 1", fake.commentCreates)
	}
	if len(migrated.Comments) != 1 || migrated.Comments[0].ID != "rc-101" {
		t.Errorf("local comment id not rewritten: %+v", migrated.Comments)
	}
}

func TestPushClosesRemoteOnCreateWhenLocalIsDone(t *testing.T) {
	rec, store, fake := newReconciler(t)
	createLocal(t, store, "Done already", "CLOSED")

	results := rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.lastState != connector.StateClosed {
		t.Errorf("remote not closed after create, state = %s", fake.lastState)
	}
	if fake.tasks["100"].Prop(types.PropStatus) != "CLOSED" {
		t.Error("remote status not CLOSED")
	}
}

func TestPushConvergence(t *testing.T) {
	rec, store, fake := newReconciler(t)
	createLocal(t, store, "Fix bug", "CLOSED")
	remote, _ := types.NewTask("Fix bug", "", "OPEN")
	remote.ID = "1"
	fake.tasks["1"] = remote

	results := rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.tasks["1"].Prop(types.PropStatus) != "CLOSED" {
		t.Error("remote did not converge to closed")
	}

	// Second push finds both sides equal: nothing to sync, no mutating
	// remote calls.
	updatesBefore, createsBefore := fake.taskUpdates, fake.taskCreates+fake.commentCreates
	results = rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeUpToDate {
		t.Fatalf("second push outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.taskUpdates != updatesBefore || fake.taskCreates+fake.commentCreates != createsBefore {
		t.Error("nothing-to-sync push issued mutating remote calls")
	}
}

func TestPushCommentIdempotence(t *testing.T) {
	rec, store, fake := newReconciler(t)

	task := createLocal(t, store, "Fix bug", "CLOSED")
	task.AddComment("rc-500", nil, "already synced")
	task.AddComment("", nil, "not yet synced")
	if err := store.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	remote, _ := types.NewTask("Fix bug", "", "OPEN")
	remote.ID = "1"
	remote.AddComment("rc-500", nil, "already synced")
	fake.tasks["1"] = remote

	results := rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	// Exactly one create, for the unsynced comment only.
	if fake.commentCreates != 1 {
		t.Errorf("comment creates = %d, want 1", fake.commentCreates)
	}

	got, _ := store.Find("1")
	if got.FindComment("rc-500") == nil {
		t.Error("synced comment id was disturbed")
	}
	if got.FindComment("2") != nil {
		t.Error("unsynced comment kept its local id after push")
	}
}

func TestPushSyncsCommentsWhenStatusEqual(t *testing.T) {
	rec, store, fake := newReconciler(t)

	task := createLocal(t, store, "stable", "OPEN")
	task.AddComment("rc-500", nil, "already synced")
	task.AddComment("", nil, "local only")
	if err := store.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	remote, _ := types.NewTask("stable", "", "OPEN")
	remote.ID = "1"
	remote.AddComment("rc-500", nil, "already synced")
	fake.tasks["1"] = remote

	// The unsynced comment goes out even though the task fields agree.
	results := rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.commentCreates != 1 {
		t.Errorf("comment creates = %d, want 1", fake.commentCreates)
	}
	if fake.taskUpdates != 0 {
		t.Errorf("task updates = %d, fields were equal", fake.taskUpdates)
	}

	// With the comment synced, the next push has nothing to do.
	results = rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeUpToDate {
		t.Fatalf("second push outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.commentCreates != 1 {
		t.Errorf("comment creates = %d after second push, want 1", fake.commentCreates)
	}
}

func TestPushPropagatesNameAndDescription(t *testing.T) {
	rec, store, fake := newReconciler(t)
	createLocal(t, store, "renamed locally", "OPEN")

	remote, _ := types.NewTask("old name", "old text", "OPEN")
	remote.ID = "1"
	fake.tasks["1"] = remote

	results := rec.Push(context.Background(), []string{"1"}, PushOptions{})
	if results[0].Outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.taskUpdates != 1 {
		t.Errorf("task updates = %d, want 1", fake.taskUpdates)
	}
	if got := fake.tasks["1"].Prop(types.PropName); got != "renamed locally" {
		t.Errorf("remote name = %q after push", got)
	}
}

func TestPushNoComments(t *testing.T) {
	rec, store, fake := newReconciler(t)
	task := createLocal(t, store, "Fix bug", "OPEN")
	task.AddComment("", nil, "note")
	if err := store.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	results := rec.Push(context.Background(), []string{"1"}, PushOptions{NoComments: true})
	if results[0].Outcome != OutcomeCreated {
		t.Fatalf("outcome = %s (%v)", results[0].Outcome, results[0].Err)
	}
	if fake.commentCreates != 0 {
		t.Errorf("comment creates = %d with NoComments", fake.commentCreates)
	}
}

func TestPushMissingLocalTask(t *testing.T) {
	rec, _, _ := newReconciler(t)
	results := rec.Push(context.Background(), []string{"42"}, PushOptions{})
	if results[0].Outcome != OutcomeFailed || results[0].Err == nil {
		t.Errorf("pushing an unknown id: %+v", results[0])
	}
}

func TestPushPartialFailureContinues(t *testing.T) {
	rec, store, _ := newReconciler(t)
	createLocal(t, store, "good", "OPEN")

	results := rec.Push(context.Background(), []string{"42", "1"}, PushOptions{})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Outcome != OutcomeFailed {
		t.Error("first result should fail")
	}
	if results[1].Outcome != OutcomeCreated {
		t.Errorf("second result = %s (%v), the failure should not abort it", results[1].Outcome, results[1].Err)
	}
}

func TestPullCreatesLocally(t *testing.T) {
	rec, store, fake := newReconciler(t)
	remote, _ := types.NewTask("From remote", "imported", "OPEN")
	remote.ID = "200"
	remote.AddComment("rc-1", nil, "remote note")
	fake.tasks["200"] = remote

	results, err := rec.Pull(context.Background(), PullOptions{})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != OutcomeCreated {
		t.Fatalf("results = %+v", results)
	}

	local, _ := store.Find("200")
	if local == nil {
		t.Fatal("pulled task not stored")
	}
	if local.Prop(types.PropName) != "From remote" || len(local.Comments) != 1 {
		t.Errorf("pulled record wrong: %+v", local)
	}
}

func TestPullSkipsEqualAndUpdatesDrifted(t *testing.T) {
	rec, store, fake := newReconciler(t)

	same := createLocal(t, store, "stable", "OPEN")
	remoteSame := same.Clone()
	fake.tasks[same.ID] = remoteSame

	drifted := createLocal(t, store, "drifted", "OPEN")
	remoteDrifted := drifted.Clone()
	remoteDrifted.SetProperty(types.PropStatus, "CLOSED")
	remoteDrifted.AddComment("rc-9", nil, "remote only")
	fake.tasks[drifted.ID] = remoteDrifted

	results, err := rec.Pull(context.Background(), PullOptions{})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	outcomes := map[string]Outcome{}
	for _, res := range results {
		outcomes[res.ID] = res.Outcome
	}
	if outcomes[same.ID] != OutcomeUpToDate {
		t.Errorf("equal task outcome = %s", outcomes[same.ID])
	}
	if outcomes[drifted.ID] != OutcomeUpdated {
		t.Errorf("drifted task outcome = %s", outcomes[drifted.ID])
	}

	got, _ := store.Find(drifted.ID)
	if got.Prop(types.PropStatus) != "CLOSED" {
		t.Error("remote status not applied on pull")
	}
	if got.FindComment("rc-9") == nil {
		t.Error("remote comment not imported")
	}

	// Pull never deletes local-only tasks.
	if tasks, _ := store.List(); len(tasks) != 2 {
		t.Errorf("task count changed: %d", len(tasks))
	}
}

func TestPullByIDContinuesPastMissing(t *testing.T) {
	rec, store, fake := newReconciler(t)
	remote, _ := types.NewTask("exists", "", "OPEN")
	remote.ID = "200"
	fake.tasks["200"] = remote

	// A missing id fails its own result; later ids still import.
	results, err := rec.Pull(context.Background(), PullOptions{IDs: []string{"404", "200"}})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Outcome != OutcomeFailed || results[0].Err == nil {
		t.Errorf("missing id result = %+v", results[0])
	}
	if results[1].Outcome != OutcomeCreated {
		t.Errorf("second id = %s (%v), the failure should not abort it", results[1].Outcome, results[1].Err)
	}
	if local, _ := store.Find("200"); local == nil {
		t.Error("task after the failed id was not imported")
	}
}
