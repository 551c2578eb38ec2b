package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/config"
	"github.com/tasksync/tasks/internal/tasks/daemon"
	"github.com/tasksync/tasks/internal/tasks/dashboard"
	"github.com/tasksync/tasks/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:         "daemon",
	GroupID:     "sync",
	Short:       "Refresh from the remote store periodically (foreground)",
	Annotations: map[string]string{logsAnnotation: "true"},
	Long: `Run the sync daemon in the foreground.

The daemon refreshes the local database from the remote store every
sync.interval. A failed refresh is logged and retried on the next tick.

If a config file is in use it is watched: saving it with a new
sync.interval takes effect without a restart.

Pass --dashboard to also serve the live WebSocket dashboard.`,
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")

		a := mustOpenApp()
		defer a.Close()

		if !cmd.Flags().Changed("interval") {
			interval = config.GetDuration(config.KeySyncInterval)
		}
		if !cmd.Flags().Changed("port") {
			port = config.GetInt(config.KeyDashboardPort)
		}

		d, err := daemon.NewWithConfig(a.syncer, &daemon.Config{
			Interval:         interval,
			DebounceInterval: 200 * time.Millisecond,
			ConfigPath:       config.ConfigFileUsed(),
			Reload:           reloadInterval,
			Logger:           componentLogger("daemon"),
		})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		var server *dashboard.Server
		if withDashboard {
			server = startDashboard(cmd.Context(), a, port)
		}

		fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Remote: %s\n", a.client.BaseURL())
		fmt.Printf("   Database: %s\n", a.db.Path())
		fmt.Printf("   Interval: %v\n", interval)
		if path := config.ConfigFileUsed(); path != "" {
			fmt.Printf("   Watching: %s\n", path)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Start blocks until the signal arrives.
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}

		if server != nil {
			if err := server.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error during dashboard shutdown: %v\n", err)
			}
		}

		status := d.Status()
		fmt.Printf("\nDaemon stopped after %d refreshes (%d failed)\n", status.Runs, status.Failures)
	},
}

// reloadInterval re-reads the config file and returns the refresh interval.
func reloadInterval() (time.Duration, error) {
	if err := config.Reload(); err != nil {
		return 0, err
	}
	return config.GetDuration(config.KeySyncInterval), nil
}

var dashboardCmd = &cobra.Command{
	Use:         "dashboard",
	GroupID:     "advanced",
	Short:       "Serve a live WebSocket view of the task list",
	Annotations: map[string]string{logsAnnotation: "true"},
	Long: `Start a WebSocket dashboard that broadcasts task list changes.

The dashboard refreshes from the remote store on the sync interval and
broadcasts the result of every refresh.

WebSocket messages:
- task_update: a task was inserted, updated, saved or removed, with its
  position in the list
- sync_complete: a refresh finished
- stats: totals by priority and completion

Example usage:
  tasks dashboard                   # Start on default port 8080
  tasks dashboard --port 9000       # Start on custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = config.GetInt(config.KeyDashboardPort)
		}

		a := mustOpenApp()
		defer a.Close()

		d, err := daemon.NewWithConfig(a.syncer, &daemon.Config{
			Interval:         config.GetDuration(config.KeySyncInterval),
			DebounceInterval: 200 * time.Millisecond,
			ConfigPath:       config.ConfigFileUsed(),
			Reload:           reloadInterval,
			Logger:           componentLogger("daemon"),
		})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		server := startDashboard(cmd.Context(), a, port)

		fmt.Printf("Dashboard server started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
		fmt.Printf("Health check: http://%s/health\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
		}

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard server stopped")
	},
}

// startDashboard serves the dashboard and subscribes it to a's syncer.
func startDashboard(ctx context.Context, a *app, port int) *dashboard.Server {
	logger := componentLogger("dashboard")
	server := dashboard.NewServer(&dashboard.Config{
		Port:   port,
		Logger: logger,
	})
	if err := server.Start(); err != nil {
		fatalf("failed to start dashboard: %v", err)
	}

	handler := dashboard.NewHandler(server, a.db, logger)
	a.syncer.Subscribe(handler)
	handler.BroadcastStats(ctx)
	return server
}

func init() {
	daemonCmd.Flags().Duration("interval", 30*time.Second, "Refresh interval (default: sync.interval)")
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the WebSocket dashboard")
	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port (default: dashboard.port)")

	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(dashboardCmd)
}
