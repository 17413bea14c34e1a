package taskstore

import (
	"reflect"
	"testing"

	"github.com/go-git/go-git/v5"

	"github.com/gittask/gittask/internal/objstore"
	"github.com/gittask/gittask/internal/types"
)

func newTestStore(t *testing.T) *Store {
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
	return New(objstore.New(repo))
}

func mustCreate(t *testing.T, s *Store, name, status string) string {
	t.Helper()
	task, err := types.NewTask(name, "", status)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	id, err := s.Create(task)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return id
}

func TestCreateListDelete(t *testing.T) {
	s := newTestStore(t)

	if id := mustCreate(t, s, "Fix bug", "OPEN"); id != "1" {
		t.Errorf("first id = %q, want 1", id)
	}
	if id := mustCreate(t, s, "Write docs", "OPEN"); id != "2" {
		t.Errorf("second id = %q, want 2", id)
	}

	tasks, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(tasks))
	}

	if err := s.Delete([]string{"1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	tasks, _ = s.List()
	if len(tasks) != 1 || tasks[0].ID != "2" {
		t.Errorf("after delete: %+v", tasks)
	}
	if task, err := s.Find("1"); err != nil || task != nil {
		t.Errorf("Find(1) after delete = %+v, %v; want nil, nil", task, err)
	}
}

func TestFindAbsentIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	task, err := s.Find("99")
	if err != nil {
		t.Fatalf("Find on missing id errored: %v", err)
	}
	if task != nil {
		t.Errorf("Find(99) = %+v, want nil", task)
	}
}

func TestRoundTripPreservesEverything(t *testing.T) {
	s := newTestStore(t)

	task, _ := types.NewTask("Fix bug", "the login test flakes", "OPEN")
	task.SetProperty("priority", "high")
	task.AddComment("", map[string]string{types.PropAuthor: "alice"}, "seen on CI too")
	task.AddLabel("bug", "ff0000", "defects")

	id, err := s.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Find(id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got == nil {
		t.Fatal("created task not found")
	}
	// Create stamps created/author onto the in-memory task too, so the
	// two sides must agree exactly.
	if !reflect.DeepEqual(task, got) {
		t.Errorf("round trip mismatch:\nstored %+v\nloaded %+v", task, got)
	}
	if got.Prop(types.PropCreated) == "" {
		t.Error("created property was not stamped")
	}
	if got.Prop(types.PropAuthor) != "Test User" {
		t.Errorf("author = %q, want Test User", got.Prop(types.PropAuthor))
	}
}

func TestNextIDMonotonicity(t *testing.T) {
	s := newTestStore(t)

	// Seed with an explicit high id and a non-numeric one.
	task, _ := types.NewTask("imported", "", "OPEN")
	task.ID = "41"
	if _, err := s.Create(task); err != nil {
		t.Fatalf("Create explicit: %v", err)
	}
	alien, _ := types.NewTask("remote", "", "OPEN")
	alien.ID = "PROJ-9"
	if _, err := s.Create(alien); err != nil {
		t.Fatalf("Create non-numeric: %v", err)
	}

	if id := mustCreate(t, s, "next", "OPEN"); id != "42" {
		t.Errorf("next id = %q, want 42", id)
	}
	if id := mustCreate(t, s, "after", "OPEN"); id != "43" {
		t.Errorf("next id = %q, want 43", id)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	id := mustCreate(t, s, "Fix bug", "OPEN")

	task, _ := s.Find(id)
	task.SetProperty(types.PropStatus, "CLOSED")
	if err := s.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Find(id)
	if got.Prop(types.PropStatus) != "CLOSED" {
		t.Errorf("status = %q after update", got.Prop(types.PropStatus))
	}

	if err := s.Update(&types.Task{Props: map[string]string{types.PropName: "x", types.PropStatus: "OPEN"}}); err != ErrNoID {
		t.Errorf("Update without id: got %v, want ErrNoID", err)
	}
}

func TestMigrateIDEquivalence(t *testing.T) {
	s := newTestStore(t)
	id := mustCreate(t, s, "Fix bug", "OPEN")
	original, _ := s.Find(id)

	if err := s.MigrateID(id, "100"); err != nil {
		t.Fatalf("MigrateID: %v", err)
	}

	if old, _ := s.Find(id); old != nil {
		t.Errorf("old id still present: %+v", old)
	}
	moved, _ := s.Find("100")
	if moved == nil {
		t.Fatal("migrated task not found under new id")
	}
	original.ID = "100"
	if !reflect.DeepEqual(original, moved) {
		t.Errorf("migration changed the record:\nbefore %+v\nafter  %+v", original, moved)
	}
}

func TestMigrateIDRejectsBadMoves(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "a", "OPEN")
	mustCreate(t, s, "b", "OPEN")

	if err := s.MigrateID("99", "100"); err == nil {
		t.Error("migrating a missing id should fail")
	}
	if err := s.MigrateID("1", "2"); err == nil {
		t.Error("migrating onto an occupied id should fail")
	}
	if err := s.MigrateID("1", "1"); err != nil {
		t.Errorf("same-id migration should be a no-op, got %v", err)
	}
}

func TestUpdateCommentID(t *testing.T) {
	s := newTestStore(t)
	task, _ := types.NewTask("a", "", "OPEN")
	task.AddComment("", nil, "note")
	id, _ := s.Create(task)

	if err := s.UpdateCommentID(id, "1", "IC-500"); err != nil {
		t.Fatalf("UpdateCommentID: %v", err)
	}
	got, _ := s.Find(id)
	if got.FindComment("IC-500") == nil || got.FindComment("1") != nil {
		t.Errorf("comment id not rewritten: %+v", got.Comments)
	}

	if err := s.UpdateCommentID(id, "nope", "x"); err == nil {
		t.Error("rewriting a missing comment id should fail")
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "a", "OPEN")
	mustCreate(t, s, "b", "OPEN")

	n, err := s.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
	if tasks, _ := s.List(); len(tasks) != 0 {
		t.Errorf("tasks remain after Clear: %+v", tasks)
	}

	if n, err := s.Clear(); err != nil || n != 0 {
		t.Errorf("Clear on empty store = %d, %v", n, err)
	}
}

func TestListSurvivesCorruptEntry(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "good", "OPEN")
	if err := s.Objects().Apply("sneak in garbage", objstore.Edit{Name: "999", Content: []byte("not json")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	tasks, err := s.List()
	if err == nil {
		t.Error("List should report the undecodable entry")
	}
	if len(tasks) != 1 || tasks[0].ID != "1" {
		t.Errorf("List should still return the good task, got %+v", tasks)
	}
}

func TestDecodeLegacyBareMap(t *testing.T) {
	s := newTestStore(t)
	legacy := []byte(`{"name":"old style","status":"OPEN","created":"100"}`)
	if err := s.Objects().Apply("legacy record", objstore.Edit{Name: "7", Content: legacy}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	task, err := s.Find("7")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if task == nil || task.Prop(types.PropName) != "old style" {
		t.Errorf("legacy record not decoded: %+v", task)
	}
}
