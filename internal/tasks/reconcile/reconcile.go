// Package reconcile computes the local changes needed to bring the local task
// list in line with a snapshot fetched from the remote store.
//
// Reconcile is a pure function: it reads its inputs and returns the tasks to
// update and to insert. Applying them is the caller's job, so a storage
// failure can be retried without recomputing anything.
//
// The remote snapshot wins every field of a matched task. There is no
// timestamp comparison and no three-way merge. Local tasks missing from the
// snapshot are left alone; a sync never deletes.
package reconcile

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Skip records a remote entry that could not be used.
type Skip struct {
	Identifier string
	Err        error
}

// Result is the outcome of a reconciliation.
type Result struct {
	// ToUpdate holds local tasks carrying the remote field values.
	ToUpdate []*schema.Task
	// ToInsert holds remote tasks with no local counterpart.
	ToInsert []*schema.Task
	// Skipped holds remote entries dropped because they could not be parsed.
	Skipped []Skip
}

// Empty reports whether the result carries no mutations.
func (r *Result) Empty() bool {
	return len(r.ToUpdate) == 0 && len(r.ToInsert) == 0
}

// Reconcile matches remote representations against local tasks by identifier.
//
// Matched identifiers produce an update: the local identity with the remote
// name, notes, completion flag and priority. Unmatched identifiers produce an
// insert. Remote entries whose identifier or priority cannot be parsed are
// reported in Skipped and otherwise ignored; they never fail the batch. Field
// values are taken as they are, so a remote name is never rejected here. If the
// snapshot repeats an identifier, the later entry wins.
//
// Both output slices are ordered by identifier.
func Reconcile(local []*schema.Task, remote []*schema.Representation) *Result {
	result := &Result{}

	remoteByID := make(map[uuid.UUID]*schema.Task, len(remote))
	for _, rep := range remote {
		if rep == nil {
			continue
		}
		task, err := schema.FromRepresentation(rep)
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{Identifier: rep.Identifier, Err: err})
			continue
		}
		remoteByID[task.ID] = task
	}

	localByID := make(map[uuid.UUID]*schema.Task, len(local))
	for _, task := range local {
		localByID[task.ID] = task
	}

	for id, remoteTask := range remoteByID {
		localTask, ok := localByID[id]
		if !ok {
			result.ToInsert = append(result.ToInsert, remoteTask)
			continue
		}

		updated := remoteTask.Clone()
		updated.ID = localTask.ID
		result.ToUpdate = append(result.ToUpdate, updated)
	}

	sortByID(result.ToUpdate)
	sortByID(result.ToInsert)
	return result
}

// Apply returns the task list that results from applying r to local.
// local is not modified.
func Apply(local []*schema.Task, r *Result) []*schema.Task {
	byID := make(map[uuid.UUID]*schema.Task, len(local)+len(r.ToInsert))
	order := make([]uuid.UUID, 0, len(local)+len(r.ToInsert))

	for _, task := range local {
		if _, seen := byID[task.ID]; !seen {
			order = append(order, task.ID)
		}
		byID[task.ID] = task.Clone()
	}
	for _, task := range r.ToUpdate {
		if _, ok := byID[task.ID]; ok {
			byID[task.ID] = task.Clone()
		}
	}
	for _, task := range r.ToInsert {
		if _, seen := byID[task.ID]; !seen {
			order = append(order, task.ID)
		}
		byID[task.ID] = task.Clone()
	}

	out := make([]*schema.Task, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func sortByID(tasks []*schema.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID.String() < tasks[j].ID.String()
	})
}
