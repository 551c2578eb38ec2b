package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/schema"
	tasksync "github.com/tasksync/tasks/internal/tasks/sync"
)

// countingSyncer counts refreshes and optionally fails them.
type countingSyncer struct {
	fetches atomic.Int32
	fail    atomic.Bool
}

func (s *countingSyncer) FetchTasksFromServer(ctx context.Context) (*tasksync.Report, error) {
	s.fetches.Add(1)
	if s.fail.Load() {
		return nil, errors.New("server unreachable")
	}
	return &tasksync.Report{}, nil
}

func (s *countingSyncer) Put(ctx context.Context, task *schema.Task) error { return nil }
func (s *countingSyncer) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *countingSyncer) Save(ctx context.Context, task *schema.Task) error { return nil }
func (s *countingSyncer) Remove(ctx context.Context, id uuid.UUID) error { return nil }
func (s *countingSyncer) Subscribe(o tasksync.Observer) func() { return func() {} }

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// startDaemon runs d.Start in the background and stops it at cleanup.
func startDaemon(t *testing.T, d *Daemon) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		syncer  tasksync.Syncer
		config  *Config
		wantErr bool
	}{
		{
			name:   "defaults",
			syncer: &countingSyncer{},
		},
		{
			name:    "nil syncer",
			config:  &Config{Interval: time.Second},
			wantErr: true,
		},
		{
			name:    "zero interval",
			syncer:  &countingSyncer{},
			config:  &Config{Logger: testLogger()},
			wantErr: true,
		},
		{
			name:   "custom",
			syncer: &countingSyncer{},
			config: &Config{Interval: time.Minute, Logger: testLogger()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				d   *Daemon
				err error
			)
			if tt.config == nil && tt.syncer != nil {
				d, err = New(tt.syncer)
			} else {
				d, err = NewWithConfig(tt.syncer, tt.config)
			}

			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.Interval() <= 0 {
				t.Errorf("Interval() = %v, want positive", d.Interval())
			}
		})
	}
}

func TestDaemon_RefreshesPeriodically(t *testing.T) {
	s := &countingSyncer{}
	d, err := NewWithConfig(s, &Config{Interval: 20 * time.Millisecond, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	if !waitFor(t, 2*time.Second, func() bool { return s.fetches.Load() >= 3 }) {
		t.Fatalf("expected at least 3 refreshes, got %d", s.fetches.Load())
	}

	st := d.Status()
	if st.Failures != 0 {
		t.Errorf("Failures = %d, want 0", st.Failures)
	}
	if st.LastSync.IsZero() || st.LastReport == nil {
		t.Error("expected last sync to be recorded")
	}
}

func TestDaemon_FailureIsRetried(t *testing.T) {
	s := &countingSyncer{}
	s.fail.Store(true)

	d, err := NewWithConfig(s, &Config{Interval: 20 * time.Millisecond, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	if !waitFor(t, 2*time.Second, func() bool { return d.Status().Failures >= 2 }) {
		t.Fatalf("expected repeated failures, status = %+v", d.Status())
	}

	s.fail.Store(false)
	if !waitFor(t, 2*time.Second, func() bool { return d.Status().LastErr == nil }) {
		t.Fatal("daemon did not recover after server came back")
	}
}

func TestDaemon_StopIsIdempotent(t *testing.T) {
	d, err := NewWithConfig(&countingSyncer{}, &Config{Interval: time.Hour, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop() failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestDaemon_SetInterval(t *testing.T) {
	s := &countingSyncer{}
	d, err := NewWithConfig(s, &Config{Interval: time.Hour, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	if err := d.SetInterval(0); err == nil {
		t.Error("SetInterval(0) should fail")
	}
	if err := d.SetInterval(20 * time.Millisecond); err != nil {
		t.Fatalf("SetInterval() failed: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return s.fetches.Load() >= 3 }) {
		t.Fatalf("new interval not applied, %d refreshes", s.fetches.Load())
	}
}

func TestDaemon_ReloadsIntervalFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("1h"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reload := func() (time.Duration, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, err
		}
		return time.ParseDuration(strings.TrimSpace(string(data)))
	}

	d, err := NewWithConfig(&countingSyncer{}, &Config{
		Interval:         time.Hour,
		DebounceInterval: 20 * time.Millisecond,
		ConfigPath:       path,
		Reload:           reload,
		Logger:           testLogger(),
	})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	// Let the watcher start before changing the file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("45s"), 0644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return d.Interval() == 45*time.Second }) {
		t.Fatalf("Interval() = %v after config change, want 45s", d.Interval())
	}

	// A bad value keeps the current interval.
	if err := os.WriteFile(path, []byte("soon"), 0644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if d.Interval() != 45*time.Second {
		t.Errorf("Interval() = %v after bad config, want 45s", d.Interval())
	}
}
