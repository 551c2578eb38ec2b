package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/tasks/db"
	"github.com/tasksync/tasks/internal/tasks/migrate"
	"github.com/tasksync/tasks/internal/tasks/remote"
	"github.com/tasksync/tasks/internal/tasks/schema"
	"github.com/tasksync/tasks/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "tasks",
	Short:   "List tasks grouped by priority",
	Long: `List tasks from the local database, grouped under priority headings and
ordered by name within each group.

Pass --sync to refresh from the remote store first.`,
	Run: func(cmd *cobra.Command, args []string) {
		priority, _ := cmd.Flags().GetString("priority")
		showDone, _ := cmd.Flags().GetBool("all")
		refresh, _ := cmd.Flags().GetBool("sync")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a := mustOpenApp()
		defer a.Close()
		ctx := cmd.Context()

		if refresh {
			if _, err := a.syncer.FetchTasksFromServer(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "%s Refresh failed, showing local tasks: %v\n", ui.RenderWarn(ui.IconWarn), err)
			}
		}

		filter := db.ListTasksFilter{}
		if priority != "" {
			p, err := schema.ParsePriority(priority)
			if err != nil {
				fatalf("%v", err)
			}
			filter.Priority = p
		}
		if !showDone {
			open := false
			filter.Complete = &open
		}

		tasks, err := a.db.ListTasks(ctx, filter)
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			if err := migrate.Export(os.Stdout, tasks, migrate.FormatJSONL); err != nil {
				fatalf("%v", err)
			}
			return
		}
		ui.RenderList(os.Stdout, tasks)
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "tasks",
	Short:   "Show one task",
	Long:    `Show every field of a task. The id may be any unique prefix of the identifier.`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()

		task, err := a.db.FindTask(cmd.Context(), args[0])
		if err != nil {
			fatalf("%v", err)
		}
		ui.RenderTask(os.Stdout, task)
	},
}

var createCmd = &cobra.Command{
	Use:     "create [name]",
	Aliases: []string{"add", "new"},
	GroupID: "tasks",
	Short:   "Create a task",
	Long: `Create a task and push it to the remote store.

With no name on an interactive terminal a form asks for the fields.

Examples:
  tasks create "Buy milk"
  tasks create "Pay rent" --priority critical --notes "before the 1st"
  tasks create`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		task := schema.NewTask("")
		if len(args) == 1 {
			task.Name = args[0]
			if err := applyFieldFlags(cmd, task); err != nil {
				fatalf("%v", err)
			}
		} else {
			if !ui.IsInteractive() {
				fatalf("a task name is required when not running in a terminal")
			}
			if err := applyFieldFlags(cmd, task); err != nil {
				fatalf("%v", err)
			}
			if err := ui.EditTask("New task", task); err != nil {
				fatalf("%v", err)
			}
		}

		a := mustOpenApp()
		defer a.Close()

		saveTask(cmd.Context(), a, task, "Created")
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "tasks",
	Short:   "Edit a task",
	Long: `Edit a task's fields and push the result to the remote store.

Field flags change only the fields given. With no field flags on an
interactive terminal a form is shown.

Examples:
  tasks edit 1f0c --priority high
  tasks edit 1f0c --notes ""
  tasks edit 1f0c`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		ctx := cmd.Context()

		task, err := a.db.FindTask(ctx, args[0])
		if err != nil {
			fatalf("%v", err)
		}

		if anyFieldFlag(cmd) {
			if err := applyFieldFlags(cmd, task); err != nil {
				fatalf("%v", err)
			}
		} else {
			if !ui.IsInteractive() {
				fatalf("nothing to change: pass --name, --notes, --priority or --complete")
			}
			if err := ui.EditTask("Edit task", task); err != nil {
				fatalf("%v", err)
			}
		}

		saveTask(ctx, a, task, "Updated")
	},
}

var completeCmd = &cobra.Command{
	Use:     "complete <id>...",
	Aliases: []string{"done"},
	GroupID: "tasks",
	Short:   "Mark tasks complete",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		undo, _ := cmd.Flags().GetBool("undo")

		a := mustOpenApp()
		defer a.Close()
		ctx := cmd.Context()

		for _, ref := range args {
			task, err := a.db.FindTask(ctx, ref)
			if err != nil {
				fatalf("%v", err)
			}
			task.Complete = !undo
			saveTask(ctx, a, task, "Updated")
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	GroupID: "tasks",
	Short:   "Delete a task",
	Long:    `Delete a task locally and from the remote store.`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		a := mustOpenApp()
		defer a.Close()
		ctx := cmd.Context()

		task, err := a.db.FindTask(ctx, args[0])
		if err != nil {
			fatalf("%v", err)
		}

		if !force {
			if !ui.IsInteractive() {
				fatalf("refusing to delete without confirmation: pass --force")
			}
			ok, err := ui.Confirm(fmt.Sprintf("Delete %q?", task.Name))
			if err != nil {
				fatalf("%v", err)
			}
			if !ok {
				return
			}
		}

		err = a.syncer.Remove(ctx, task.ID)
		var remoteErr *remote.Error
		switch {
		case err == nil:
			fmt.Printf("%s Deleted %s\n", ui.RenderPass(ui.IconPass), task.Name)
		case errors.As(err, &remoteErr):
			fmt.Printf("%s Deleted %s locally\n", ui.RenderPass(ui.IconPass), task.Name)
			fmt.Fprintf(os.Stderr, "%s Remote delete failed (%s): %v\n", ui.RenderWarn(ui.IconWarn), remoteErr.Kind, err)
			os.Exit(1)
		default:
			fatalf("%v", err)
		}
	},
}

// saveTask saves locally and remotely and reports the outcome. A remote
// failure leaves the local save in place and exits non-zero.
func saveTask(ctx context.Context, a *app, task *schema.Task, verb string) {
	err := a.syncer.Save(ctx, task)
	var remoteErr *remote.Error
	switch {
	case err == nil:
		fmt.Printf("%s %s %s %s\n", ui.RenderPass(ui.IconPass), verb, task.Name, ui.RenderMuted("("+ui.ShortID(task)+")"))
	case errors.As(err, &remoteErr):
		fmt.Printf("%s %s %s locally %s\n", ui.RenderPass(ui.IconPass), verb, task.Name, ui.RenderMuted("("+ui.ShortID(task)+")"))
		fmt.Fprintf(os.Stderr, "%s Remote update failed (%s): %v\n", ui.RenderWarn(ui.IconWarn), remoteErr.Kind, err)
		os.Exit(1)
	default:
		fatalf("%v", err)
	}
}

var fieldFlags = []string{"name", "notes", "priority", "complete"}

func anyFieldFlag(cmd *cobra.Command) bool {
	for _, name := range fieldFlags {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// applyFieldFlags copies the field flags the user set onto task.
func applyFieldFlags(cmd *cobra.Command, task *schema.Task) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		task.Name, _ = flags.GetString("name")
	}
	if flags.Changed("notes") {
		notes, _ := flags.GetString("notes")
		task.SetNotes(notes)
	}
	if flags.Changed("priority") {
		value, _ := flags.GetString("priority")
		p, err := schema.ParsePriority(value)
		if err != nil {
			return err
		}
		task.Priority = p
	}
	if flags.Changed("complete") {
		task.Complete, _ = flags.GetBool("complete")
	}
	return nil
}

func addFieldFlags(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().String("name", "", "Task name")
	}
	cmd.Flags().String("notes", "", "Notes (empty clears them)")
	cmd.Flags().StringP("priority", "p", "", "Priority: low, normal, high or critical")
	cmd.Flags().Bool("complete", false, "Mark complete")
}

func init() {
	listCmd.Flags().StringP("priority", "p", "", "Only show this priority")
	listCmd.Flags().BoolP("all", "a", false, "Include completed tasks")
	listCmd.Flags().Bool("sync", false, "Refresh from the remote store first")
	listCmd.Flags().Bool("json", false, "Output tasks as JSONL")

	addFieldFlags(createCmd, false)
	addFieldFlags(editCmd, true)

	completeCmd.Flags().Bool("undo", false, "Mark incomplete instead")
	deleteCmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(deleteCmd)
}
