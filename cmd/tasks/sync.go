package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/config"
	"github.com/tasksync/tasks/internal/tasks/reconcile"
	"github.com/tasksync/tasks/internal/tasks/remote"
	"github.com/tasksync/tasks/internal/tasks/schema"
	tasksync "github.com/tasksync/tasks/internal/tasks/sync"
	"github.com/tasksync/tasks/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Refresh the local list from the remote store",
	Long: `Fetch the remote snapshot and merge it into the local database.

For every task both sides know, the remote values replace the local ones.
Remote tasks the local database lacks are added. Local tasks the remote does
not have are kept. Nothing is ever deleted by a refresh.

Remote entries that cannot be read are skipped and listed.`,
	Run: func(cmd *cobra.Command, args []string) {
		showDiff, _ := cmd.Flags().GetBool("diff")

		a := mustOpenApp()
		defer a.Close()

		fmt.Printf("%s Syncing from %s...\n", ui.RenderAccent("🔄"), a.client.BaseURL())

		// Completions run on the dispatcher; Close drains it before we read result.
		dispatcher := remote.NewDispatcher(1)
		var result tasksync.Result
		async := tasksync.NewAsync(a.syncer, dispatcher)
		async.FetchAsync(cmd.Context(), func(r tasksync.Result) {
			result = r
		})
		async.Wait()
		dispatcher.Close()

		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync (%s): %v\n", result.Kind(), result.Err)
			os.Exit(1)
		}

		report := result.Report
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass(ui.IconPass), report.Duration.Round(time.Millisecond))
		fmt.Printf("   Fetched:   %d\n", report.Fetched)
		fmt.Printf("   Updated:   %d\n", report.Updated)
		fmt.Printf("   Inserted:  %d\n", report.Inserted)
		fmt.Printf("   Unchanged: %d\n", report.Unchanged)
		if len(report.Skipped) > 0 {
			fmt.Printf("%s Skipped %d remote entries:\n", ui.RenderWarn(ui.IconWarn), len(report.Skipped))
			for _, skip := range report.Skipped {
				fmt.Printf("   %s: %v\n", skip.Identifier, skip.Err)
			}
		}

		if showDiff && report.Diff != nil {
			printDiff(report.Diff)
		}
	},
}

// printDiff lists each change with its position in the list view.
func printDiff(diff *reconcile.Diff) {
	if diff.Empty() {
		fmt.Println(ui.RenderMuted("No changes."))
		return
	}
	fmt.Println()
	for _, change := range diff.Changes {
		marker := ui.RenderPass("+")
		where := fmt.Sprintf("at %d", change.Position)
		if change.Kind == reconcile.ChangeUpdate {
			marker = ui.RenderAccent("~")
			if change.OldPosition != change.Position {
				where = fmt.Sprintf("%d -> %d", change.OldPosition, change.Position)
			}
		}
		fmt.Printf("  %s %s %s\n", marker, ui.RenderTaskLine(change.Task), ui.RenderMuted(where))
	}
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local database and remote status",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		ctx := cmd.Context()

		stats, err := a.db.GetStats(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("\n%s Task List Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Database: %s\n", a.db.Path())
		if info, err := os.Stat(a.db.Path()); err == nil {
			fmt.Printf("Size: %s\n", formatSize(info.Size()))
			fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("Remote: %s\n", a.client.BaseURL())
		if path := config.ConfigFileUsed(); path != "" {
			fmt.Printf("Config: %s\n", path)
		}

		fmt.Printf("\nTasks: %d (%d complete)\n", stats.Total, stats.Complete)
		for i := len(schema.AllPriorities) - 1; i >= 0; i-- {
			p := schema.AllPriorities[i]
			if n := stats.ByPriority[p]; n > 0 {
				fmt.Printf("  %-9s %d\n", ui.RenderPriority(p), n)
			}
		}

		check, _ := cmd.Flags().GetBool("check")
		if !check {
			fmt.Println()
			return
		}

		start := time.Now()
		snapshot, err := a.client.FetchAll(ctx)
		if err != nil {
			fmt.Printf("\n%s Remote unreachable (%s): %v\n\n", ui.RenderFail(ui.IconFail), remote.KindOf(err), err)
			os.Exit(1)
		}
		fmt.Printf("\n%s Remote reachable: %d entries in %v\n\n", ui.RenderPass(ui.IconPass), len(snapshot), time.Since(start).Round(time.Millisecond))
	},
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	syncCmd.Flags().Bool("diff", false, "List the changes applied")
	statusCmd.Flags().Bool("check", false, "Also check that the remote store is reachable")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
