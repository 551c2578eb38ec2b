package sync

import (
	"context"
	gosync "sync"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/remote"
	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Result is delivered to an asynchronous completion.
type Result struct {
	// Report is set for a successful refresh.
	Report *Report
	Err    error
}

// Kind classifies Err using the remote error taxonomy.
func (r Result) Kind() remote.Kind {
	return remote.KindOf(r.Err)
}

// Async runs Syncer operations in the background and delivers each result
// exactly once on a Dispatcher.
type Async struct {
	syncer     Syncer
	dispatcher *remote.Dispatcher
	wg         gosync.WaitGroup
}

// NewAsync wraps s. Completions are posted to d; a nil d runs them on the
// worker goroutine.
func NewAsync(s Syncer, d *remote.Dispatcher) *Async {
	return &Async{syncer: s, dispatcher: d}
}

// FetchAsync refreshes from the server and calls done with the outcome.
func (a *Async) FetchAsync(ctx context.Context, done func(Result)) {
	a.run(done, func() Result {
		report, err := a.syncer.FetchTasksFromServer(ctx)
		return Result{Report: report, Err: err}
	})
}

// PutAsync writes task remotely and calls done with the outcome.
func (a *Async) PutAsync(ctx context.Context, task *schema.Task, done func(Result)) {
	a.run(done, func() Result {
		return Result{Err: a.syncer.Put(ctx, task)}
	})
}

// DeleteAsync removes id remotely and calls done with the outcome.
func (a *Async) DeleteAsync(ctx context.Context, id uuid.UUID, done func(Result)) {
	a.run(done, func() Result {
		return Result{Err: a.syncer.Delete(ctx, id)}
	})
}

// Wait blocks until every started operation has handed its result to the
// dispatcher.
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) run(done func(Result), op func() Result) {
	completion := remote.NewCompletion(a.dispatcher, done)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		completion.Complete(op())
	}()
}
