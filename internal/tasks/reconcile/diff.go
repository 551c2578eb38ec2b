package reconcile

import (
	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// ChangeKind says what happened to a task in the ordered list view.
type ChangeKind int

const (
	// ChangeInsert indicates a task was added.
	ChangeInsert ChangeKind = iota
	// ChangeUpdate indicates an existing task changed one or more fields.
	ChangeUpdate
	// ChangeDelete indicates a task was removed.
	ChangeDelete
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one entry of a Diff.
type Change struct {
	Kind ChangeKind
	Task *schema.Task
	// Position is the index of Task in the ordered view: after the change for
	// inserts and updates, before it for deletes.
	Position int
	// OldPosition is the index before an update, or -1.
	OldPosition int
}

// Diff describes how the ordered list view changes, so any presentation layer
// can patch itself instead of reloading.
type Diff struct {
	Changes []Change
	// Unchanged counts matched tasks whose fields already equalled the remote.
	Unchanged int
	// View is the full ordered list after the changes.
	View []*schema.Task
}

// Empty reports whether the diff changes nothing.
func (d *Diff) Empty() bool {
	return len(d.Changes) == 0
}

// Count returns the number of changes of the given kind.
func (d *Diff) Count(kind ChangeKind) int {
	n := 0
	for _, c := range d.Changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Plan turns a reconciliation result into a Diff against the ordered view of
// local. Updates that would not change any field are counted as unchanged.
func Plan(local []*schema.Task, r *Result) *Diff {
	before := ordered(local)
	beforePos := positions(before)

	localByID := make(map[uuid.UUID]*schema.Task, len(local))
	for _, task := range local {
		localByID[task.ID] = task
	}

	after := ordered(Apply(local, r))
	afterPos := positions(after)

	diff := &Diff{View: after}
	for _, task := range r.ToUpdate {
		old, ok := localByID[task.ID]
		if !ok {
			continue
		}
		if old.SameFields(task) {
			diff.Unchanged++
			continue
		}
		diff.Changes = append(diff.Changes, Change{
			Kind:        ChangeUpdate,
			Task:        task,
			Position:    afterPos[task.ID],
			OldPosition: beforePos[task.ID],
		})
	}
	for _, task := range r.ToInsert {
		diff.Changes = append(diff.Changes, Change{
			Kind:        ChangeInsert,
			Task:        task,
			Position:    afterPos[task.ID],
			OldPosition: -1,
		})
	}
	return diff
}

// Removal builds the Diff for deleting id from the view of local.
// It returns an empty Diff if id is not present.
func Removal(local []*schema.Task, id uuid.UUID) *Diff {
	before := ordered(local)

	diff := &Diff{View: make([]*schema.Task, 0, len(before))}
	for i, task := range before {
		if task.ID == id {
			diff.Changes = append(diff.Changes, Change{
				Kind:        ChangeDelete,
				Task:        task,
				Position:    i,
				OldPosition: i,
			})
			continue
		}
		diff.View = append(diff.View, task)
	}
	return diff
}

func ordered(tasks []*schema.Task) []*schema.Task {
	out := make([]*schema.Task, len(tasks))
	copy(out, tasks)
	schema.Sort(out)
	return out
}

func positions(tasks []*schema.Task) map[uuid.UUID]int {
	pos := make(map[uuid.UUID]int, len(tasks))
	for i, task := range tasks {
		pos[task.ID] = i
	}
	return pos
}
