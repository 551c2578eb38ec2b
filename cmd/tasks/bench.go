package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/tasks/loadtest"
	"github.com/tasksync/tasks/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure local database latency under concurrent access",
	Long: `Create a throwaway database, fill it with generated tasks and measure
list query latency with many concurrent readers.

With --verify, readers also run against a writer that applies refreshes for
--duration, checking that every read sees a sorted list that never shrinks.

Examples:
  tasks bench
  tasks bench --readers 50 --tasks 5000
  tasks bench --verify --duration 5s --json`,
	Run:     runBench,
	GroupID: "advanced",
}

func init() {
	benchCmd.Flags().Int("readers", 20, "Number of concurrent readers")
	benchCmd.Flags().Int("tasks", 1000, "Number of tasks in the database")
	benchCmd.Flags().Int("queries", 10, "Number of queries per reader")
	benchCmd.Flags().Bool("verify", false, "Also run the consistency check against a concurrent writer")
	benchCmd.Flags().Duration("duration", 2*time.Second, "Length of the consistency check")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

// benchResult is the JSON output of bench.
type benchResult struct {
	Tasks        int    `json:"tasks"`
	Readers      int    `json:"readers"`
	TotalQueries int    `json:"total_queries"`
	Errors       int    `json:"errors"`
	MinMicros    int64  `json:"min_us"`
	P50Micros    int64  `json:"p50_us"`
	P95Micros    int64  `json:"p95_us"`
	P99Micros    int64  `json:"p99_us"`
	MaxMicros    int64  `json:"max_us"`
	Consistent   *bool  `json:"consistent,omitempty"`
	Inconsistent string `json:"inconsistency,omitempty"`
}

func runBench(cmd *cobra.Command, args []string) {
	readers, _ := cmd.Flags().GetInt("readers")
	numTasks, _ := cmd.Flags().GetInt("tasks")
	queries, _ := cmd.Flags().GetInt("queries")
	verify, _ := cmd.Flags().GetBool("verify")
	duration, _ := cmd.Flags().GetDuration("duration")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if readers <= 0 || numTasks <= 0 || queries <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --readers, --tasks and --queries must be positive\n")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "tasks-bench-")
	if err != nil {
		fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	if !jsonOutput {
		fmt.Printf("Configuration: %d readers, %d tasks, %d queries/reader\n\n", readers, numTasks, queries)
	}

	td, err := loadtest.CreateTestDatabase(filepath.Join(dir, "bench.db"), numTasks)
	if err != nil {
		fatalf("%v", err)
	}
	defer td.Close()

	ctx := cmd.Context()
	stats, err := td.RunConcurrentQueries(ctx, readers, queries)
	if err != nil {
		fatalf("%v", err)
	}

	result := benchResult{
		Tasks:        numTasks,
		Readers:      readers,
		TotalQueries: stats.TotalQueries,
		Errors:       stats.Errors,
		MinMicros:    stats.Min.Microseconds(),
		P50Micros:    stats.P50.Microseconds(),
		P95Micros:    stats.P95.Microseconds(),
		P99Micros:    stats.P99.Microseconds(),
		MaxMicros:    stats.Max.Microseconds(),
	}

	var verifyErr error
	if verify {
		verifyErr = td.VerifyConsistency(ctx, readers, duration)
		ok := verifyErr == nil
		result.Consistent = &ok
		if verifyErr != nil {
			result.Inconsistent = verifyErr.Error()
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		stats.Print(os.Stdout)
		if verify {
			fmt.Println()
			if verifyErr == nil {
				fmt.Printf("%s Consistent for %v with a concurrent writer\n", ui.RenderPass(ui.IconPass), duration)
			} else {
				fmt.Printf("%s %v\n", ui.RenderFail(ui.IconFail), verifyErr)
			}
		}
	}

	if stats.Errors > 0 || verifyErr != nil {
		os.Exit(1)
	}
}
