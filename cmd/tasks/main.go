package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/config"
	"github.com/tasksync/tasks/internal/logging"
	"github.com/tasksync/tasks/internal/ui"
)

// Version is set at build time.
var Version = "dev"

// logsAnnotation marks long-running commands whose component logs belong on
// stderr even without --verbose.
const logsAnnotation = "logs"

var appLogger *logging.Logger

var rootCmd = &cobra.Command{
	Use:   "tasks",
	Short: "A task list kept in sync with a remote document store",
	Long: `tasks keeps a prioritised task list in a local SQLite database and
synchronises it with a remote JSON document store.

Edits are written locally first and then pushed to the remote store. A
refresh pulls the remote snapshot and merges it into the local list: the
remote copy wins for tasks both sides know, new remote tasks are added, and
local tasks the remote does not have are kept.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			if err := os.Setenv("TASKS_CONFIG", path); err != nil {
				return fmt.Errorf("failed to set config path: %w", err)
			}
		}
		if err := config.Initialize(); err != nil {
			return err
		}
		if err := config.BindFlags(cmd.Root().PersistentFlags(), map[string]string{
			"db":       config.KeyDBPath,
			"remote":   config.KeyRemoteURL,
			"log-file": config.KeyLogFile,
			"no-color": config.KeyNoColor,
			"verbose":  config.KeyVerbose,
		}); err != nil {
			return err
		}

		if config.GetBool(config.KeyNoColor) {
			ui.SetColorEnabled(false)
		}

		logger, err := logging.New(&logging.Config{
			File:       config.GetString(config.KeyLogFile),
			MaxSizeMB:  config.GetInt(config.KeyLogMaxSizeMB),
			MaxBackups: config.GetInt(config.KeyLogMaxBackups),
			MaxAgeDays: config.GetInt(config.KeyLogMaxAgeDays),
			Quiet:      !config.GetBool(config.KeyVerbose) && cmd.Annotations[logsAnnotation] == "",
		})
		if err != nil {
			return err
		}
		appLogger = logger
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Close()
		}
	},
}

// componentLogger returns the logger for one component, e.g. "[sync] ".
func componentLogger(name string) *log.Logger {
	if appLogger == nil {
		return log.New(os.Stderr, "["+name+"] ", log.LstdFlags)
	}
	return appLogger.Named(name)
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Working With Tasks:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: .tasks/config.yaml or ~/.config/tasks/config.yaml)")
	flags.String("db", "", "Local database path")
	flags.String("remote", "", "Remote document store URL")
	flags.String("log-file", "", "Also write logs to this file (rotated)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.BoolP("verbose", "v", false, "Show component logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
