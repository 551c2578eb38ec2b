package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tasksync/tasks/internal/tasks/migrate"
	"github.com/tasksync/tasks/internal/tasks/remote"
	"github.com/tasksync/tasks/internal/ui"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	GroupID: "advanced",
	Short:   "Remote document store tools",
}

var remoteServeCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run an in-memory document store for local development",
	Annotations: map[string]string{logsAnnotation: "true"},
	Long: `Serve the remote store's REST contract from memory:

  GET    /.json        whole snapshot, keyed by identifier (null when empty)
  GET    /{id}.json    one task
  PUT    /{id}.json    store a task
  DELETE /{id}.json    remove a task

Point the client at it with --remote http://127.0.0.1:9000/ or remote.url.
Contents are lost on exit.

Examples:
  tasks remote serve
  tasks remote serve --addr :9000 --seed tasks.jsonl`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		seed, _ := cmd.Flags().GetString("seed")

		server := remote.NewServer(componentLogger("remote"))

		if seed != "" {
			reps, err := migrate.ReadFile(seed)
			if err != nil {
				fatalf("%v", err)
			}
			docs := make(map[string]any, len(reps))
			for _, rep := range reps {
				docs[rep.Identifier] = rep
			}
			if err := server.Seed(docs); err != nil {
				fatalf("failed to seed store: %v", err)
			}
		}

		if err := server.Start(addr); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Document store listening on http://%s/\n", ui.RenderAccent("🗄"), server.Addr())
		fmt.Printf("   Documents: %d\n", server.Len())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	remoteServeCmd.Flags().String("addr", "127.0.0.1:9000", "Address to listen on")
	remoteServeCmd.Flags().String("seed", "", "Load documents from a jsonl, yaml or toml file")

	remoteCmd.AddCommand(remoteServeCmd)
	rootCmd.AddCommand(remoteCmd)
}
