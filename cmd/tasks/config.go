package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/config"
	"github.com/tasksync/tasks/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file holding the defaults",
	Long: `Write a config file holding every setting at its default value.

The default path is .tasks/config.yaml in the current directory; --global
writes ~/.config/tasks/config.yaml instead.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		global, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		path := filepath.Join(".tasks", "config.yaml")
		switch {
		case len(args) == 1:
			path = args[0]
		case global:
			home, err := os.UserHomeDir()
			if err != nil {
				fatalf("failed to find home directory: %v", err)
			}
			path = filepath.Join(home, ".config", "tasks", "config.yaml")
		}

		if err := config.WriteDefault(path, force); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass(ui.IconPass), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Run: func(cmd *cobra.Command, args []string) {
		if path := config.ConfigFileUsed(); path != "" {
			fmt.Printf("%s %s\n\n", ui.RenderMuted("# from"), path)
		} else {
			fmt.Printf("%s\n\n", ui.RenderMuted("# no config file; defaults and environment only"))
		}

		defaults := config.Defaults()
		keys := make([]string, 0, len(defaults))
		for key := range defaults {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			fmt.Printf("%s = %v\n", ui.RenderAccent(key), displayValue(key))
		}
	},
}

func displayValue(key string) interface{} {
	switch key {
	case config.KeySyncInterval, config.KeyRemoteTimeout:
		return config.GetDuration(key)
	case config.KeyNoColor, config.KeyVerbose:
		return config.GetBool(key)
	default:
		return config.GetString(key)
	}
}

func init() {
	configInitCmd.Flags().Bool("global", false, "Write the per-user config file")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
