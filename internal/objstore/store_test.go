package objstore

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-git/go-git/v5"
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
	return New(repo)
}

func TestEmptyStore(t *testing.T) {
	s := newTestStore(t)

	names, err := s.Names()
	if err != nil {
		t.Fatalf("Names on empty store: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Names = %v, want empty", names)
	}

	_, found, err := s.Read("1")
	if err != nil || found {
		t.Errorf("Read on empty store = found=%v err=%v", found, err)
	}

	walked := false
	if err := s.Walk(func(string, []byte) (bool, error) { walked = true; return false, nil }); err != nil {
		t.Fatalf("Walk on empty store: %v", err)
	}
	if walked {
		t.Error("Walk visited entries in an empty store")
	}
}

func TestApplyReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.Apply("create 1", Edit{Name: "1", Content: []byte("alpha")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	content, found, err := s.Read("1")
	if err != nil || !found {
		t.Fatalf("Read = found=%v err=%v", found, err)
	}
	if string(content) != "alpha" {
		t.Errorf("content = %q, want alpha", content)
	}

	// Replace in place.
	if err := s.Apply("update 1", Edit{Name: "1", Content: []byte("beta")}); err != nil {
		t.Fatalf("Apply update: %v", err)
	}
	content, _, _ = s.Read("1")
	if string(content) != "beta" {
		t.Errorf("content after update = %q, want beta", content)
	}
}

func TestApplyRemoveAndOrdering(t *testing.T) {
	s := newTestStore(t)

	err := s.Apply("seed",
		Edit{Name: "2", Content: []byte("b")},
		Edit{Name: "10", Content: []byte("c")},
		Edit{Name: "1", Content: []byte("a")},
	)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	names, err := s.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	// Tree entries are byte-sorted, so "10" comes before "2".
	if want := []string{"1", "10", "2"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}

	if err := s.Apply("remove 10", Edit{Name: "10"}); err != nil {
		t.Fatalf("Apply remove: %v", err)
	}
	if _, found, _ := s.Read("10"); found {
		t.Error("entry 10 still present after removal")
	}
	names, _ = s.Names()
	if want := []string{"1", "2"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Names after removal = %v, want %v", names, want)
	}
}

func TestApplyNoEditsIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Apply("nothing"); err != nil {
		t.Fatalf("Apply with no edits: %v", err)
	}
	if names, _ := s.Names(); len(names) != 0 {
		t.Error("no-op Apply created a commit with entries")
	}
}

func TestWalkEarlyStop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Apply("seed",
		Edit{Name: "1", Content: []byte("a")},
		Edit{Name: "2", Content: []byte("b")},
		Edit{Name: "3", Content: []byte("c")},
	); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	visited := 0
	err := s.Walk(func(name string, _ []byte) (bool, error) {
		visited++
		return name == "2", nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if visited != 2 {
		t.Errorf("visited %d entries, want 2", visited)
	}
}

func TestRefPathConfigurable(t *testing.T) {
	s := newTestStore(t)

	path, err := s.RefPath()
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	if path != DefaultRef {
		t.Errorf("default ref = %q, want %q", path, DefaultRef)
	}

	if err := s.SetConfigValue(RefConfigKey, "refs/tasks/alt"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}
	if err := s.Apply("create 1", Edit{Name: "1", Content: []byte("a")}); err != nil {
		t.Fatalf("Apply under alt ref: %v", err)
	}
	if _, found, _ := s.Read("1"); !found {
		t.Error("entry not visible under the configured ref")
	}
}

func TestSetRefPathRelocates(t *testing.T) {
	s := newTestStore(t)
	if err := s.Apply("create 1", Edit{Name: "1", Content: []byte("a")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := s.SetRefPath("refs/tasks/moved", true); err != nil {
		t.Fatalf("SetRefPath: %v", err)
	}
	path, _ := s.RefPath()
	if path != "refs/tasks/moved" {
		t.Errorf("RefPath = %q after move", path)
	}
	if _, found, _ := s.Read("1"); !found {
		t.Error("history lost after relocation")
	}
	// The next write extends the relocated history.
	if err := s.Apply("create 2", Edit{Name: "2", Content: []byte("b")}); err != nil {
		t.Fatalf("Apply after move: %v", err)
	}
}

func TestSetRefPathWithoutRelocateStartsFresh(t *testing.T) {
	s := newTestStore(t)
	if err := s.Apply("create 1", Edit{Name: "1", Content: []byte("a")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := s.SetRefPath("refs/tasks/fresh", false); err != nil {
		t.Fatalf("SetRefPath: %v", err)
	}
	if names, _ := s.Names(); len(names) != 0 {
		t.Errorf("fresh ref should be empty, got %v", names)
	}
}

func TestSignatureRequiresIdentity(t *testing.T) {
	repo, err := git.PlainInit(t.TempDir(), false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	s := New(repo)

	if _, err := s.Signature(); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Signature without identity: got %v, want ErrNoIdentity", err)
	}
	err = s.Apply("create 1", Edit{Name: "1", Content: []byte("a")})
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Apply without identity: got %v, want ErrNoIdentity", err)
	}
}

func TestConfigValueRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if v, err := s.ConfigValue("task.redmine.api_key"); err != nil || v != "" {
		t.Fatalf("unset key = %q, %v", v, err)
	}
	if err := s.SetConfigValue("task.redmine.api_key", "secret"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}
	if v, _ := s.ConfigValue("task.redmine.api_key"); v != "secret" {
		t.Errorf("three-part key = %q, want secret", v)
	}

	if err := s.SetConfigValue("task.statuses", "[]"); err != nil {
		t.Fatalf("SetConfigValue two-part: %v", err)
	}
	if v, _ := s.ConfigValue("task.statuses"); v != "[]" {
		t.Errorf("two-part key = %q, want []", v)
	}

	if _, err := s.ConfigValue("nodots"); err == nil {
		t.Error("key without section should be rejected")
	}
}
