package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tasksync/tasks/internal/config"
	"github.com/tasksync/tasks/internal/tasks/db"
	"github.com/tasksync/tasks/internal/tasks/remote"
	tasksync "github.com/tasksync/tasks/internal/tasks/sync"
)

// app bundles the handles one command invocation works with.
type app struct {
	db     *db.DB
	client *remote.Client
	syncer tasksync.Syncer
}

// openDB opens the local database, creating it and its directory if needed.
func openDB() (*db.DB, error) {
	path := config.GetString(config.KeyDBPath)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}

// newClient creates a client for the configured remote store.
func newClient() (*remote.Client, error) {
	return remote.NewClient(remote.Config{
		BaseURL: config.GetString(config.KeyRemoteURL),
		Timeout: config.GetDuration(config.KeyRemoteTimeout),
		Logger:  componentLogger("remote"),
	})
}

// openApp opens the database and wires it to the remote store.
func openApp() (*app, error) {
	database, err := openDB()
	if err != nil {
		return nil, err
	}

	client, err := newClient()
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &app{
		db:     database,
		client: client,
		syncer: tasksync.New(database, client, componentLogger("sync")),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// mustOpenApp is openApp for Run functions: it exits on failure.
func mustOpenApp() *app {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

// fatalf prints an error and exits.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
