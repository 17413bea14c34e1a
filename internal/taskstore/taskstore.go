// Package taskstore implements CRUD over task records stored in the
// repository object database, one JSON document per task, keyed by the
// task id as the tree entry name.
package taskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gittask/gittask/internal/objstore"
	"github.com/gittask/gittask/internal/types"
)

// nowUnix is swappable so tests can pin the created timestamp.
var nowUnix = func() int64 { return time.Now().Unix() }

// ErrNoID is returned by operations that require the task to already
// carry an id.
var ErrNoID = errors.New("task has no id")

// Store provides record-level access to the task database.
type Store struct {
	obj *objstore.Store
}

// Open opens the task store for the repository containing path.
func Open(path string) (*Store, error) {
	obj, err := objstore.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{obj: obj}, nil
}

// New wraps an existing object store.
func New(obj *objstore.Store) *Store {
	return &Store{obj: obj}
}

// Objects exposes the underlying object store for configuration and
// remote lookups.
func (s *Store) Objects() *objstore.Store {
	return s.obj
}

// List returns every task in the store, order unspecified. Records that
// fail to decode are skipped; their errors are joined into the returned
// error alongside the successfully decoded tasks.
func (s *Store) List() ([]*types.Task, error) {
	var tasks []*types.Task
	var decodeErrs []error
	err := s.obj.Walk(func(name string, content []byte) (bool, error) {
		task, err := decode(name, content)
		if err != nil {
			decodeErrs = append(decodeErrs, fmt.Errorf("task %s: %w", name, err))
			return false, nil
		}
		tasks = append(tasks, task)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, errors.Join(decodeErrs...)
}

// Find returns the task with the given id, or nil when absent.
// Absence is a normal outcome, not an error.
func (s *Store) Find(id string) (*types.Task, error) {
	content, ok, err := s.obj.Read(id)
	if err != nil || !ok {
		return nil, err
	}
	return decode(id, content)
}

// Create persists the task, assigning the next free numeric id when the
// task carries none. The created and author properties are populated on
// first persistence and never rewritten afterwards.
//
// The id scan and the subsequent write are not one atomic step: two
// processes creating tasks at the same time can compute the same next id.
// Acceptable for single-writer CLI use; the ref update itself still
// detects the race and fails one of the writers.
func (s *Store) Create(task *types.Task) (string, error) {
	if task.ID == "" {
		id, err := s.nextID()
		if err != nil {
			return "", err
		}
		task.ID = id
	}

	if _, ok := task.Property(types.PropCreated); !ok {
		task.SetProperty(types.PropCreated, strconv.FormatInt(nowUnix(), 10))
	}
	if _, ok := task.Property(types.PropAuthor); !ok {
		if sig, err := s.obj.Signature(); err == nil {
			task.SetProperty(types.PropAuthor, sig.Name)
		}
	}

	content, err := encode(task)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("create task %s", task.ID)
	if err := s.obj.Apply(msg, objstore.Edit{Name: task.ID, Content: content}); err != nil {
		return "", err
	}
	return task.ID, nil
}

// Update rewrites the task's blob in place under its existing id.
func (s *Store) Update(task *types.Task) error {
	if task.ID == "" {
		return ErrNoID
	}
	content, err := encode(task)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("update task %s", task.ID)
	return s.obj.Apply(msg, objstore.Edit{Name: task.ID, Content: content})
}

// Delete removes the named entries in a single commit.
func (s *Store) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	edits := make([]objstore.Edit, 0, len(ids))
	for _, id := range ids {
		edits = append(edits, objstore.Edit{Name: id})
	}
	msg := fmt.Sprintf("delete task(s) %s", strings.Join(ids, ", "))
	return s.obj.Apply(msg, edits...)
}

// Clear removes every task in a single commit and returns how many
// entries were removed.
func (s *Store) Clear() (int, error) {
	names, err := s.obj.Names()
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}
	edits := make([]objstore.Edit, 0, len(names))
	for _, name := range names {
		edits = append(edits, objstore.Edit{Name: name})
	}
	if err := s.obj.Apply("clear tasks", edits...); err != nil {
		return 0, err
	}
	return len(names), nil
}

// MigrateID moves a task to a new id. The new entry is written and the
// old one removed in one tree build and one commit, so an interrupted
// migration can never leave the record under both ids.
func (s *Store) MigrateID(oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	task, err := s.Find(oldID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task ID %s not found", oldID)
	}
	if existing, err := s.Find(newID); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("task ID %s already exists", newID)
	}

	task.ID = newID
	content, err := encode(task)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("migrate task %s -> %s", oldID, newID)
	return s.obj.Apply(msg,
		objstore.Edit{Name: newID, Content: content},
		objstore.Edit{Name: oldID},
	)
}

// UpdateCommentID rewrites a comment id, typically after a remote tracker
// assigned its own id during a push.
func (s *Store) UpdateCommentID(taskID, oldID, newID string) error {
	task, err := s.Find(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task ID %s not found", taskID)
	}
	comment := task.FindComment(oldID)
	if comment == nil {
		return fmt.Errorf("task ID %s: comment ID %s not found", taskID, oldID)
	}
	comment.ID = newID
	return s.Update(task)
}

// nextID scans all entry names, parses the purely numeric ones and
// returns max+1 (1 for an empty store). O(number of tasks) per call.
func (s *Store) nextID() (string, error) {
	names, err := s.obj.Names()
	if err != nil {
		return "", err
	}
	var max int64
	for _, name := range names {
		n, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10), nil
}

func encode(task *types.Task) ([]byte, error) {
	content, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("serializing task %s: %w", task.ID, err)
	}
	return content, nil
}

// decode reads a stored record. The entry name wins over any id carried
// inside the document; the two only diverge if the tree was edited by
// hand. Bare property maps from early exports are still accepted.
func decode(name string, content []byte) (*types.Task, error) {
	var task types.Task
	if err := json.Unmarshal(content, &task); err == nil && task.Props != nil {
		task.ID = name
		if task.Props[types.PropName] == "" || task.Props[types.PropStatus] == "" {
			return nil, types.ErrEmptyNameOrStatus
		}
		return &task, nil
	}
	var props map[string]string
	if err := json.Unmarshal(content, &props); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return types.FromProps(name, props)
}
