// Package schema provides the task record and its JSON wire representation.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Priority is the urgency of a task. The string values are the wire values.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities lists priorities in picker order (low to critical).
var AllPriorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// ParsePriority converts a wire value to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q (want low, normal, high or critical)", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Index returns the position of p in AllPriorities, or -1.
func (p Priority) Index() int {
	for i, candidate := range AllPriorities {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p Priority) String() string {
	return string(p)
}

var (
	// ErrNoRepresentation is returned when a task cannot be converted to wire form.
	ErrNoRepresentation = errors.New("task has no wire representation")

	// ErrInvalidIdentifier is returned when a wire identifier is not a UUID.
	ErrInvalidIdentifier = errors.New("invalid task identifier")
)

// Task is a single entry in the task list.
//
// ID is the only key shared between the local store and the remote store.
// It is assigned once, at creation, and never changes.
type Task struct {
	ID       uuid.UUID
	Name     string
	Notes    *string
	Complete bool
	Priority Priority
}

// NewTask creates a task with a fresh random identifier and normal priority.
func NewTask(name string) *Task {
	return &Task{
		ID:       uuid.New(),
		Name:     name,
		Priority: PriorityNormal,
	}
}

// MaxNameLength is the longest name, in characters, accepted for local edits.
// It matches maxLength in DocumentSchema.
const MaxNameLength = 500

// Validate checks if the Task has valid field values.
// It guards local edits; remote records are only required to parse.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if n := utf8.RuneCountInString(t.Name); n > MaxNameLength {
		return fmt.Errorf("name must be %d characters or less (got %d)", MaxNameLength, n)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("priority %q is not valid", t.Priority)
	}
	return nil
}

// ValidateRecord checks only what every stored record needs: an identifier
// and a known priority. Remote records are stored under this check.
func (t *Task) ValidateRecord() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("priority %q is not valid", t.Priority)
	}
	return nil
}

// NotesText returns the notes, or "" when absent.
func (t *Task) NotesText() string {
	if t.Notes == nil {
		return ""
	}
	return *t.Notes
}

// SetNotes stores notes, treating "" as absent.
func (t *Task) SetNotes(notes string) {
	if notes == "" {
		t.Notes = nil
		return
	}
	t.Notes = &notes
}

// SameFields reports whether t and other carry the same user-visible values.
// Identity is not compared.
func (t *Task) SameFields(other *Task) bool {
	return t.Name == other.Name &&
		t.NotesText() == other.NotesText() &&
		(t.Notes == nil) == (other.Notes == nil) &&
		t.Complete == other.Complete &&
		t.Priority == other.Priority
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.Notes != nil {
		notes := *t.Notes
		c.Notes = &notes
	}
	return &c
}

// Less orders tasks the way the list view shows them: by priority value,
// then by name. ID breaks remaining ties so the order is total.
func Less(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.String() < b.ID.String()
}

// Sort orders tasks in place using Less.
func Sort(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return Less(tasks[i], tasks[j])
	})
}
