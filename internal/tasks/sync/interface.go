package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/reconcile"
	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Syncer moves tasks between the local store and the remote store.
//
// A refresh pulls the whole remote snapshot and reconciles it into the local
// store. Edits go the other way, one task at a time. Remote failures never
// undo local writes: the local store is the working copy.
type Syncer interface {
	// FetchTasksFromServer pulls the remote snapshot and applies it locally.
	//
	// The snapshot is reconciled against every local task and the resulting
	// updates and inserts are written in a single transaction. Observers are
	// notified with the Diff once the transaction commits.
	//
	// A fetch or decode failure returns before anything is reconciled and
	// leaves the local store untouched. Individual remote entries that cannot
	// be parsed are reported in Report.Skipped and do not fail the refresh.
	//
	// Only one refresh runs at a time. Callers that arrive while one is in
	// flight wait for it and share its result. Canceling ctx stops this
	// caller waiting; the refresh itself runs to completion for the others.
	//
	// Example:
	//   report, err := syncer.FetchTasksFromServer(ctx)
	FetchTasksFromServer(ctx context.Context) (*Report, error)

	// Put writes one task to the remote store, keyed by its identifier.
	//
	// Example:
	//   err := syncer.Put(ctx, task)
	Put(ctx context.Context, task *schema.Task) error

	// Delete removes one task from the remote store.
	// A status other than 200 is logged by the client, not returned.
	//
	// Example:
	//   err := syncer.Delete(ctx, task.ID)
	Delete(ctx context.Context, id uuid.UUID) error

	// Save validates task, upserts it locally and then puts it remotely.
	//
	// If the remote put fails the error is returned but the local write
	// stands; the next successful Save or refresh brings the two together.
	//
	// Example:
	//   task := schema.NewTask("Buy milk")
	//   err := syncer.Save(ctx, task)
	Save(ctx context.Context, task *schema.Task) error

	// Remove deletes the task locally and then remotely.
	//
	// Returns db.ErrNotFound if no local task has id. A remote failure is
	// returned but the local deletion stands.
	//
	// Example:
	//   err := syncer.Remove(ctx, task.ID)
	Remove(ctx context.Context, id uuid.UUID) error

	// Subscribe registers o for change notifications.
	// The returned function unregisters it.
	Subscribe(o Observer) (unsubscribe func())
}

// Observer receives change notifications from a Syncer.
//
// Callbacks run on the goroutine that made the change and must not block.
type Observer interface {
	// OnSync is called after a refresh commits. The diff may be empty.
	OnSync(diff *reconcile.Diff)
	// OnTaskSaved is called after a local save commits.
	OnTaskSaved(task *schema.Task)
	// OnTaskRemoved is called after a local delete commits. The change is a
	// ChangeDelete carrying the removed task and its position in the view
	// before the delete.
	OnTaskRemoved(change reconcile.Change)
}

// Report summarises one refresh.
type Report struct {
	// Fetched is the number of entries in the remote snapshot.
	Fetched int
	// Updated counts matched tasks with at least one changed field.
	Updated int
	// Inserted counts remote tasks that were new locally.
	Inserted int
	// Unchanged counts matched tasks that already equalled the remote.
	Unchanged int
	// Skipped lists remote entries that could not be used.
	Skipped []reconcile.Skip
	// Duration is the wall time of the refresh.
	Duration time.Duration
	// Diff is the change to the ordered view.
	Diff *reconcile.Diff
}

// Changed reports whether the refresh modified the local store.
func (r *Report) Changed() bool {
	return r.Updated > 0 || r.Inserted > 0
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Sync    func(diff *reconcile.Diff)
	Saved   func(task *schema.Task)
	Removed func(change reconcile.Change)
}

// OnSync implements Observer.
func (f ObserverFuncs) OnSync(diff *reconcile.Diff) {
	if f.Sync != nil {
		f.Sync(diff)
	}
}

// OnTaskSaved implements Observer.
func (f ObserverFuncs) OnTaskSaved(task *schema.Task) {
	if f.Saved != nil {
		f.Saved(task)
	}
}

// OnTaskRemoved implements Observer.
func (f ObserverFuncs) OnTaskRemoved(change reconcile.Change) {
	if f.Removed != nil {
		f.Removed(change)
	}
}
