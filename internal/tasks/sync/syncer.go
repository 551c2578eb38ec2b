package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tasksync/tasks/internal/tasks/reconcile"
	"github.com/tasksync/tasks/internal/tasks/remote"
	"github.com/tasksync/tasks/internal/tasks/schema"
)

// LocalStore is the part of the local database the syncer needs.
// *db.DB satisfies it.
type LocalStore interface {
	FetchAll(ctx context.Context) ([]*schema.Task, error)
	UpsertTask(ctx context.Context, task *schema.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	GetTaskByID(ctx context.Context, id uuid.UUID) (*schema.Task, error)
	Apply(ctx context.Context, updates, inserts []*schema.Task) error
}

// syncer implements the Syncer interface.
type syncer struct {
	local  LocalStore
	remote remote.Store
	logger *log.Logger

	flight singleflight.Group

	mu        gosync.Mutex
	observers map[int]Observer
	nextID    int
}

// New creates a new Syncer.
//
// The local store must already have its schema initialised.
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	database, err := db.Open(".tasks/tasks.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	client, err := remote.NewClient(remote.Config{BaseURL: url})
//	if err != nil {
//	    return err
//	}
//	syncer := sync.New(database, client, nil)
func New(local LocalStore, store remote.Store, logger *log.Logger) Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &syncer{
		local:     local,
		remote:    store,
		logger:    logger,
		observers: make(map[int]Observer),
	}
}

// FetchTasksFromServer implements Syncer.FetchTasksFromServer.
//
// The shared refresh runs detached from the callers' cancellation, so one
// caller giving up does not fail the others. Each caller stops waiting when
// its own ctx is done.
func (s *syncer) FetchTasksFromServer(ctx context.Context) (*Report, error) {
	ch := s.flight.DoChan("fetch", func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Printf("Joined in-flight sync")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Report), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("stopped waiting for sync: %w", ctx.Err())
	}
}

func (s *syncer) fetch(ctx context.Context) (*Report, error) {
	start := time.Now()

	snapshot, err := s.remote.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks from server: %w", err)
	}
	reps := schema.SnapshotValues(snapshot)

	local, err := s.local.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read local tasks: %w", err)
	}

	result := reconcile.Reconcile(local, reps)
	for _, skip := range result.Skipped {
		s.logger.Printf("WARNING: Skipped remote task %q: %v", skip.Identifier, skip.Err)
	}

	diff := reconcile.Plan(local, result)

	if !result.Empty() {
		if err := s.local.Apply(ctx, result.ToUpdate, result.ToInsert); err != nil {
			s.logger.Printf("Error saving synced tasks: %v", err)
			return nil, fmt.Errorf("failed to apply synced tasks: %w", err)
		}
	}

	report := &Report{
		Fetched:   len(reps),
		Updated:   diff.Count(reconcile.ChangeUpdate),
		Inserted:  diff.Count(reconcile.ChangeInsert),
		Unchanged: diff.Unchanged,
		Skipped:   result.Skipped,
		Duration:  time.Since(start),
		Diff:      diff,
	}

	s.logger.Printf("Sync complete: fetched=%d, updated=%d, inserted=%d, unchanged=%d, skipped=%d (%v)",
		report.Fetched, report.Updated, report.Inserted, report.Unchanged, len(report.Skipped),
		report.Duration.Round(time.Millisecond))

	s.notify(func(o Observer) { o.OnSync(diff) })
	return report, nil
}

// Put implements Syncer.Put.
func (s *syncer) Put(ctx context.Context, task *schema.Task) error {
	if err := s.remote.Put(ctx, task); err != nil {
		return fmt.Errorf("failed to put task: %w", err)
	}
	s.logger.Printf("Put task: %s (%s)", schema.FormatID(task.ID), task.Name)
	return nil
}

// Delete implements Syncer.Delete.
func (s *syncer) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.remote.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete remote task: %w", err)
	}
	s.logger.Printf("Deleted remote task: %s", schema.FormatID(id))
	return nil
}

// Save implements Syncer.Save.
func (s *syncer) Save(ctx context.Context, task *schema.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	if err := s.local.UpsertTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	s.logger.Printf("Saved task: %s (%s)", schema.FormatID(task.ID), task.Name)
	s.notify(func(o Observer) { o.OnTaskSaved(task) })

	return s.Put(ctx, task)
}

// Remove implements Syncer.Remove.
func (s *syncer) Remove(ctx context.Context, id uuid.UUID) error {
	task, err := s.local.GetTaskByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find task: %w", err)
	}
	local, err := s.local.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read local tasks: %w", err)
	}
	change := removalChange(local, task)

	if err := s.local.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("failed to remove task: %w", err)
	}
	s.logger.Printf("Removed task: %s at position %d", schema.FormatID(id), change.Position)
	s.notify(func(o Observer) { o.OnTaskRemoved(change) })

	return s.Delete(ctx, id)
}

// removalChange locates task in the view of local. A task missing from local
// gets position -1.
func removalChange(local []*schema.Task, task *schema.Task) reconcile.Change {
	if diff := reconcile.Removal(local, task.ID); !diff.Empty() {
		return diff.Changes[0]
	}
	return reconcile.Change{Kind: reconcile.ChangeDelete, Task: task, Position: -1, OldPosition: -1}
}

// Subscribe implements Syncer.Subscribe.
func (s *syncer) Subscribe(o Observer) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// notify calls fn for every observer in subscription order.
func (s *syncer) notify(fn func(Observer)) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	for _, o := range observers {
		fn(o)
	}
}
