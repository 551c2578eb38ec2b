// Package sync connects the local task store to the remote document store.
//
// Overview
//
// A refresh flows one way, from the remote store to the local one:
//
//	remote.Store.FetchAll
//	     ↓  map of key → representation
//	reconcile.Reconcile(local, remote)
//	     ↓  updates + inserts (never deletes)
//	LocalStore.Apply   (one transaction)
//	     ↓
//	Observer.OnSync(diff)
//
// Edits flow the other way, one task at a time: Save writes the local store
// and then puts the task remotely; Remove deletes locally and then remotely.
// A remote failure is returned to the caller but never undoes the local
// write.
//
// Usage
//
//	database, err := db.Open(".tasks/tasks.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//
//	client, err := remote.NewClient(remote.Config{BaseURL: "https://example.firebaseio.com/"})
//	if err != nil {
//	    return err
//	}
//
//	syncer := sync.New(database, client, nil)
//	report, err := syncer.FetchTasksFromServer(ctx)
//
// Asynchronous use
//
// Async runs operations on worker goroutines and posts each result, exactly
// once, to a remote.Dispatcher. Whatever owns the dispatcher sees completions
// one at a time and in order:
//
//	d := remote.NewDispatcher(0)
//	defer d.Close()
//
//	a := sync.NewAsync(syncer, d)
//	a.FetchAsync(ctx, func(r sync.Result) {
//	    if r.Err != nil {
//	        log.Printf("refresh failed (%s): %v", r.Kind(), r.Err)
//	    }
//	})
//
// Concurrency
//
// At most one refresh runs at a time. A caller that arrives while a refresh
// is in flight waits for it and receives the same Report.
package sync
