// Package loadtest measures the local store under concurrent access.
//
// Readers list tasks the way the list view does while a writer applies
// refresh-sized batches through the Reconciler, the pattern a running daemon
// and several CLI invocations produce against one database file.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/db"
	"github.com/tasksync/tasks/internal/tasks/reconcile"
	"github.com/tasksync/tasks/internal/tasks/schema"
)

// TestDatabase is a populated database for load testing.
type TestDatabase struct {
	DB         *db.DB
	TaskIDs    []uuid.UUID
	TotalTasks int
}

// LatencyStats captures performance metrics from a run.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// CreateTestDatabase opens dbPath and fills it with numTasks tasks.
//
// Priorities are weighted toward normal and about a fifth of the tasks are
// complete. The generator is seeded, so the same arguments give the same
// list.
func CreateTestDatabase(dbPath string, numTasks int) (*TestDatabase, error) {
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	tasks := generateTasks(rand.New(rand.NewSource(42)), numTasks)
	if err := database.Apply(context.Background(), nil, tasks); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to insert tasks: %w", err)
	}

	td := &TestDatabase{
		DB:         database,
		TaskIDs:    make([]uuid.UUID, 0, numTasks),
		TotalTasks: numTasks,
	}
	for _, task := range tasks {
		td.TaskIDs = append(td.TaskIDs, task.ID)
	}
	return td, nil
}

// Close closes the test database connection.
func (td *TestDatabase) Close() error {
	if td.DB != nil {
		return td.DB.Close()
	}
	return nil
}

// RunConcurrentQueries runs numReaders goroutines, each listing the whole
// task list queriesPerReader times, and returns their combined latency.
func (td *TestDatabase) RunConcurrentQueries(ctx context.Context, numReaders, queriesPerReader int) (*LatencyStats, error) {
	var wg sync.WaitGroup
	resultsChan := make(chan []time.Duration, numReaders)
	errorsChan := make(chan error, numReaders)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			durations := make([]time.Duration, 0, queriesPerReader)
			for j := 0; j < queriesPerReader; j++ {
				start := time.Now()
				_, err := td.DB.ListTasks(ctx, db.ListTasksFilter{})
				durations = append(durations, time.Since(start))

				if err != nil {
					errorsChan <- fmt.Errorf("reader %d query %d failed: %w", readerID, j, err)
					break
				}
			}
			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	var all []time.Duration
	for durations := range resultsChan {
		all = append(all, durations...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no queries completed")
	}

	stats := computeLatencyStats(all)
	stats.Errors = errorCount
	return stats, nil
}

// VerifyConsistency runs numReaders readers against a writer that refreshes
// the store from a shifting remote snapshot for the given duration.
//
// Every read must see a list in view order, and the task count must never
// shrink, since a refresh only updates and inserts.
func (td *TestDatabase) VerifyConsistency(ctx context.Context, numReaders int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, numReaders+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(7))
		for ctx.Err() == nil {
			if err := td.refreshOnce(ctx, rng); err != nil && ctx.Err() == nil {
				errorsChan <- fmt.Errorf("writer failed: %w", err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			lastCount := 0
			for ctx.Err() == nil {
				tasks, err := td.DB.ListTasks(ctx, db.ListTasksFilter{})
				if err != nil {
					if ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d read failed: %w", readerID, err)
					}
					return
				}
				if len(tasks) < lastCount {
					errorsChan <- fmt.Errorf("reader %d saw the list shrink from %d to %d", readerID, lastCount, len(tasks))
					return
				}
				lastCount = len(tasks)

				for k := 1; k < len(tasks); k++ {
					if schema.Less(tasks[k], tasks[k-1]) {
						errorsChan <- fmt.Errorf("reader %d saw %q before %q", readerID, tasks[k-1].Name, tasks[k].Name)
						return
					}
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// refreshOnce builds a remote snapshot that edits a few known tasks and adds
// one new task, then reconciles and applies it like a refresh.
func (td *TestDatabase) refreshOnce(ctx context.Context, rng *rand.Rand) error {
	local, err := td.DB.FetchAll(ctx)
	if err != nil {
		return err
	}

	var reps []*schema.Representation
	for i := 0; i < 5 && len(local) > 0; i++ {
		edited := local[rng.Intn(len(local))].Clone()
		edited.Priority = schema.AllPriorities[rng.Intn(len(schema.AllPriorities))]
		edited.Complete = !edited.Complete
		rep, err := edited.Representation()
		if err != nil {
			return err
		}
		reps = append(reps, rep)
	}

	fresh := schema.NewTask(fmt.Sprintf("Remote task %d", rng.Intn(1_000_000)))
	rep, err := fresh.Representation()
	if err != nil {
		return err
	}
	reps = append(reps, rep)

	result := reconcile.Reconcile(local, reps)
	return td.DB.Apply(ctx, result.ToUpdate, result.ToInsert)
}

func generateTasks(rng *rand.Rand, count int) []*schema.Task {
	// low 20%, normal 50%, high 20%, critical 10%
	priorities := []schema.Priority{
		schema.PriorityLow, schema.PriorityLow,
		schema.PriorityNormal, schema.PriorityNormal, schema.PriorityNormal, schema.PriorityNormal, schema.PriorityNormal,
		schema.PriorityHigh, schema.PriorityHigh,
		schema.PriorityCritical,
	}

	tasks := make([]*schema.Task, count)
	for i := 0; i < count; i++ {
		var id uuid.UUID
		_, _ = rng.Read(id[:])
		id[6] = (id[6] & 0x0f) | 0x40
		id[8] = (id[8] & 0x3f) | 0x80

		task := &schema.Task{
			ID:       id,
			Name:     fmt.Sprintf("Task %05d", i),
			Priority: priorities[rng.Intn(len(priorities))],
			Complete: rng.Intn(5) == 0,
		}
		if i%3 == 0 {
			task.SetNotes(fmt.Sprintf("batch %d", i/100))
		}
		tasks[i] = task
	}
	return tasks
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(durations)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// Print writes the statistics to w.
func (s *LatencyStats) Print(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Queries: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
