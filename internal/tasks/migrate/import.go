package migrate

import (
	"context"
	"fmt"

	"github.com/tasksync/tasks/internal/tasks/reconcile"
	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Store is the part of the local database an import writes to.
type Store interface {
	FetchAll(ctx context.Context) ([]*schema.Task, error)
	Apply(ctx context.Context, updates, inserts []*schema.Task) error
}

// ImportOptions contains configuration for an import
type ImportOptions struct {
	DryRun bool // Reconcile but do not write
}

// Import reconciles reps into store exactly as a refresh would: matching
// tasks take the imported values, new ones are inserted, nothing is deleted.
// The returned Diff describes the change whether or not it was written.
func Import(ctx context.Context, store Store, reps []*schema.Representation, opts ImportOptions) (*reconcile.Result, *reconcile.Diff, error) {
	local, err := store.FetchAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read local tasks: %w", err)
	}

	result := reconcile.Reconcile(local, reps)
	diff := reconcile.Plan(local, result)

	if opts.DryRun || result.Empty() {
		return result, diff, nil
	}

	if err := store.Apply(ctx, result.ToUpdate, result.ToInsert); err != nil {
		return nil, nil, fmt.Errorf("failed to apply import: %w", err)
	}
	return result, diff, nil
}
