package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/tasks/migrate"
	"github.com/tasksync/tasks/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "advanced",
	Short:   "Write the local task list to a file",
	Long: `Export every local task in list order.

The format comes from --format or, when a file is given, its extension:
jsonl (one remote-store document per line), yaml or toml.

Examples:
  tasks export                      # JSONL to stdout
  tasks export tasks.yaml
  tasks export --format toml > tasks.toml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatName, _ := cmd.Flags().GetString("format")

		var format migrate.Format
		var err error
		switch {
		case formatName != "":
			format, err = migrate.ParseFormat(formatName)
		case len(args) == 1:
			format, err = migrate.FormatForPath(args[0])
		default:
			format = migrate.FormatJSONL
		}
		if err != nil {
			fatalf("%v", err)
		}

		database, err := openDB()
		if err != nil {
			fatalf("%v", err)
		}
		defer database.Close()

		tasks, err := database.FetchAll(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}

		if len(args) == 0 {
			if err := migrate.Export(os.Stdout, tasks, format); err != nil {
				fatalf("%v", err)
			}
			return
		}

		if err := migrate.WriteFile(args[0], tasks, format); err != nil {
			fatalf("%v", err)
		}
		fmt.Fprintf(os.Stderr, "%s Exported %d tasks to %s\n", ui.RenderPass(ui.IconPass), len(tasks), args[0])
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "advanced",
	Short:   "Merge tasks from a file into the local list",
	Long: `Import tasks from a jsonl, yaml or toml file.

The file is merged exactly as a remote refresh would be: tasks already in
the local list take the file's values, new tasks are added, and nothing is
deleted. Entries that cannot be read are skipped and listed.

Imported tasks are local only until they are next saved; run with --push to
send every imported task to the remote store as well.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		push, _ := cmd.Flags().GetBool("push")

		reps, err := migrate.ReadFile(args[0])
		if err != nil {
			fatalf("%v", err)
		}

		a := mustOpenApp()
		defer a.Close()
		ctx := cmd.Context()

		result, diff, err := migrate.Import(ctx, a.db, reps, migrate.ImportOptions{DryRun: dryRun})
		if err != nil {
			fatalf("%v", err)
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %s: %d updated, %d inserted, %d unchanged\n",
			ui.RenderPass(ui.IconPass), verb, args[0], len(result.ToUpdate), len(result.ToInsert), diff.Unchanged)
		for _, skip := range result.Skipped {
			fmt.Printf("%s Skipped %s: %v\n", ui.RenderWarn(ui.IconWarn), skip.Identifier, skip.Err)
		}
		printDiff(diff)

		if !push || dryRun {
			return
		}

		// Push what the store committed, not what the file said.
		ids := make([]uuid.UUID, 0, len(diff.Changes))
		for _, change := range diff.Changes {
			ids = append(ids, change.Task.ID)
		}
		stored, err := a.db.GetTasksByIDs(ctx, ids)
		if err != nil {
			fatalf("%v", err)
		}

		failed := 0
		for _, task := range stored {
			if err := a.syncer.Put(ctx, task); err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s Push failed for %s: %v\n", ui.RenderWarn(ui.IconWarn), task.Name, err)
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
		fmt.Printf("%s Pushed %d tasks\n", ui.RenderPass(ui.IconPass), len(stored))
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "Output format: jsonl, yaml or toml")
	importCmd.Flags().Bool("dry-run", false, "Show what would change without writing")
	importCmd.Flags().Bool("push", false, "Also push imported tasks to the remote store")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
