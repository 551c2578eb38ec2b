package remote

import (
	"sync"
)

// Dispatcher runs completion callbacks one at a time on a single goroutine.
//
// It plays the part of the interactive context: network work may happen on
// any goroutine, but every completion posted here runs in order on the
// dispatcher's own goroutine. The queue is unbounded, so Post never blocks
// and a callback may post further work to its own dispatcher.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher. size is the initial queue capacity.
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	d := &Dispatcher{
		queue: make([]func(), 0, size),
		done:  make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// Post queues fn to run on the dispatcher goroutine.
// It returns false if the dispatcher has been closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
	return true
}

// Close stops accepting work and waits for queued callbacks to finish.
// It must not be called from a callback.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Broadcast()
	}
	d.mu.Unlock()

	<-d.done
}

// Completion delivers a single result to a callback on a dispatcher.
// Only the first call to Complete has any effect.
type Completion[T any] struct {
	once       sync.Once
	dispatcher *Dispatcher
	fn         func(T)
}

// NewCompletion binds fn to d. A nil d runs fn on the completing goroutine.
func NewCompletion[T any](d *Dispatcher, fn func(T)) *Completion[T] {
	return &Completion[T]{dispatcher: d, fn: fn}
}

// Complete delivers v. Subsequent calls are ignored.
func (c *Completion[T]) Complete(v T) {
	c.once.Do(func() {
		if c.fn == nil {
			return
		}
		if c.dispatcher == nil {
			c.fn(v)
			return
		}
		if !c.dispatcher.Post(func() { c.fn(v) }) {
			// Dispatcher already closed; deliver inline rather than drop.
			c.fn(v)
		}
	})
}
