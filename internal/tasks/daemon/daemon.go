package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	tasksync "github.com/tasksync/tasks/internal/tasks/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often to refresh from the remote store
	Interval time.Duration

	// DebounceInterval is how long a config change must settle before it
	// is reloaded. This batches the several events one save produces.
	DebounceInterval time.Duration

	// ConfigPath is the configuration file to watch. Empty disables watching.
	ConfigPath string

	// Reload re-reads configuration and returns the new refresh interval.
	// It is called after ConfigPath changes.
	Reload func() (time.Duration, error)

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         30 * time.Second,
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Status describes what the daemon has done so far.
type Status struct {
	Runs       int
	Failures   int
	LastSync   time.Time
	LastErr    error
	LastReport *tasksync.Report
	Interval   time.Duration
}

// Daemon refreshes the local store from the remote store on a timer.
type Daemon struct {
	syncer tasksync.Syncer
	config *Config

	watcher *ConfigWatcher

	mu       sync.Mutex
	interval time.Duration
	status   Status
	resetCh  chan struct{}

	// config change waiting for the debounce to elapse
	pendingAt time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a daemon with default configuration.
//
// Use Start() to begin refreshing.
func New(s tasksync.Syncer) (*Daemon, error) {
	return NewWithConfig(s, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(s tasksync.Syncer, config *Config) (*Daemon, error) {
	if s == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	var watcher *ConfigWatcher
	if config.ConfigPath != "" {
		w, err := NewConfigWatcher(config.ConfigPath)
		if err != nil {
			return nil, err
		}
		watcher = w
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:   s,
		config:   config,
		watcher:  watcher,
		interval: config.Interval,
		resetCh:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Refresh once immediately
// 2. Refresh again every Interval
// 3. Reload the interval when the config file changes
//
// A failed refresh is logged and retried on the next tick.
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	d.refresh()
	if d.ctx.Err() != nil {
		return nil
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		d.config.Logger.Printf("Watching config: %s", d.watcher.Path())

		d.wg.Add(2)
		go d.watchConfigEvents()
		go d.processConfigChanges()
	}

	d.wg.Add(1)
	go d.refreshLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. It is safe to call more than once.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")

		d.cancel()

		if d.watcher != nil {
			if err := d.watcher.Stop(); err != nil {
				d.config.Logger.Printf("Error closing watcher: %v", err)
			}
		}

		d.wg.Wait()
		d.config.Logger.Println("Daemon stopped")
	})
	return nil
}

// Interval returns the current refresh interval.
func (d *Daemon) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// SetInterval changes the refresh interval. The next tick uses it.
func (d *Daemon) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	d.mu.Lock()
	changed := d.interval != interval
	d.interval = interval
	d.mu.Unlock()

	if !changed {
		return nil
	}

	select {
	case d.resetCh <- struct{}{}:
	default:
		// a reset is already pending and will read the new value
	}

	d.config.Logger.Printf("Refresh interval set to %v", interval)
	return nil
}

// Status returns a snapshot of the daemon's progress.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.status
	st.Interval = d.interval
	return st
}

// refresh runs one sync and records the outcome.
func (d *Daemon) refresh() {
	report, err := d.syncer.FetchTasksFromServer(d.ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.Runs++
	d.status.LastErr = err
	if err != nil {
		d.status.Failures++
		d.config.Logger.Printf("Error refreshing from server: %v", err)
		return
	}
	d.status.LastSync = time.Now()
	d.status.LastReport = report
}

// refreshLoop refreshes on every tick until shutdown.
func (d *Daemon) refreshLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-d.resetCh:
			ticker.Reset(d.Interval())

		case <-ticker.C:
			d.refresh()
		}
	}
}

// watchConfigEvents queues config file changes.
func (d *Daemon) watchConfigEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if event.Op == OpDelete {
				d.config.Logger.Printf("Config file removed: %s (keeping current settings)", event.Path)
				continue
			}

			d.config.Logger.Printf("Config event: %s %s", event.Op, event.Path)
			d.mu.Lock()
			d.pendingAt = time.Now()
			d.mu.Unlock()

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// processConfigChanges reloads configuration once changes have settled.
func (d *Daemon) processConfigChanges() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.mu.Lock()
			ready := !d.pendingAt.IsZero() && time.Since(d.pendingAt) >= d.config.DebounceInterval
			if ready {
				d.pendingAt = time.Time{}
			}
			d.mu.Unlock()

			if ready {
				d.reloadConfig()
			}
		}
	}
}

func (d *Daemon) reloadConfig() {
	if d.config.Reload == nil {
		return
	}

	interval, err := d.config.Reload()
	if err != nil {
		d.config.Logger.Printf("Error reloading config: %v", err)
		return
	}
	if err := d.SetInterval(interval); err != nil {
		d.config.Logger.Printf("Ignoring reloaded interval: %v", err)
	}
}
