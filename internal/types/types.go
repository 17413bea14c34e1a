// Package types defines the core records of the gittask tracker.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Well-known property names. Every task carries at least Name and Status;
// the rest are conventions shared with the remote connectors.
const (
	PropName        = "name"
	PropDescription = "description"
	PropStatus      = "status"
	PropCreated     = "created"
	PropAuthor      = "author"
)

// ErrEmptyNameOrStatus is returned when constructing a task whose
// name or status property is missing or empty.
var ErrEmptyNameOrStatus = errors.New("name or status is empty")

// Task is a trackable work item. The ID is assigned by the store (numeric
// by convention, but opaque) or by a remote tracker after a sync. All
// scalar attributes live in the Props map so that user-defined properties
// need no schema changes.
type Task struct {
	ID       string            `json:"id,omitempty"`
	Props    map[string]string `json:"props"`
	Comments []*Comment        `json:"comments,omitempty"`
	Labels   []*Label          `json:"labels,omitempty"`
}

// Comment is a free-text note attached to a task. IDs are sequential
// integers until a remote tracker assigns its own id during a push.
type Comment struct {
	ID    string            `json:"id,omitempty"`
	Props map[string]string `json:"props,omitempty"`
	Text  string            `json:"text"`
}

// Label is a named tag on a task. Names are unique within a task.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewTask creates an unpersisted task. Name and status are mandatory.
func NewTask(name, description, status string) (*Task, error) {
	if name == "" || status == "" {
		return nil, ErrEmptyNameOrStatus
	}
	return &Task{
		Props: map[string]string{
			PropName:        name,
			PropDescription: description,
			PropStatus:      status,
		},
	}, nil
}

// FromProps reconstructs a task from a stored property map.
// The id comes from the tree entry name, never from the map itself.
func FromProps(id string, props map[string]string) (*Task, error) {
	if props[PropName] == "" || props[PropStatus] == "" {
		return nil, ErrEmptyNameOrStatus
	}
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return &Task{ID: id, Props: cp}, nil
}

// Property returns the named property and whether it is present.
func (t *Task) Property(name string) (string, bool) {
	v, ok := t.Props[name]
	return v, ok
}

// Prop returns the named property, or the empty string if absent.
func (t *Task) Prop(name string) string {
	return t.Props[name]
}

// SetProperty sets or replaces a property.
func (t *Task) SetProperty(name, value string) {
	if t.Props == nil {
		t.Props = make(map[string]string)
	}
	t.Props[name] = value
}

// DeleteProperty removes a property, reporting whether it existed.
func (t *Task) DeleteProperty(name string) bool {
	if _, ok := t.Props[name]; !ok {
		return false
	}
	delete(t.Props, name)
	return true
}

// AddComment appends a comment. When id is empty a sequential local id is
// assigned: count of existing comments + 1. Ids are not reused after a
// deletion, matching the remote trackers' behavior.
func (t *Task) AddComment(id string, props map[string]string, text string) *Comment {
	if id == "" {
		id = strconv.Itoa(len(t.Comments) + 1)
	}
	c := &Comment{ID: id, Props: props, Text: text}
	t.Comments = append(t.Comments, c)
	return c
}

// FindComment returns the comment with the given id, or nil.
func (t *Task) FindComment(id string) *Comment {
	for _, c := range t.Comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// DeleteComment removes the comment with the given id.
func (t *Task) DeleteComment(id string) error {
	for i, c := range t.Comments {
		if c.ID == id {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("comment ID %s not found", id)
}

// AddLabel attaches a label, replacing any existing label with the same name.
func (t *Task) AddLabel(name, color, description string) *Label {
	for _, l := range t.Labels {
		if l.Name == name {
			l.Color = color
			l.Description = description
			return l
		}
	}
	l := &Label{Name: name, Color: color, Description: description}
	t.Labels = append(t.Labels, l)
	return l
}

// DeleteLabel removes the named label.
func (t *Task) DeleteLabel(name string) error {
	for i, l := range t.Labels {
		if l.Name == name {
			t.Labels = append(t.Labels[:i], t.Labels[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("label %s not found", name)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := &Task{ID: t.ID, Props: make(map[string]string, len(t.Props))}
	for k, v := range t.Props {
		cp.Props[k] = v
	}
	for _, c := range t.Comments {
		cc := &Comment{ID: c.ID, Text: c.Text}
		if c.Props != nil {
			cc.Props = make(map[string]string, len(c.Props))
			for k, v := range c.Props {
				cc.Props[k] = v
			}
		}
		cp.Comments = append(cp.Comments, cc)
	}
	for _, l := range t.Labels {
		ll := *l
		cp.Labels = append(cp.Labels, &ll)
	}
	return cp
}
