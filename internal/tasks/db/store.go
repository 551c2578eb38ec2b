// Package db provides the local task store on embedded SQLite.
//
// The store is the on-device copy of the task list. The command line reads
// and edits it directly, and the syncer applies reconciliation results to it
// in a single transaction per sync.
//
// Architecture:
//   - Database file: .tasks/tasks.db
//   - WAL mode: readers are not blocked while a sync commits
//   - Schema: one tasks table keyed by identifier
//   - Writes that must land together go through Apply, which serialises
//     writers and commits all or nothing
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// ErrNotFound is returned when a task does not exist in the store.
var ErrNotFound = errors.New("task not found")

// DB wraps the SQLite connection holding the local task list.
type DB struct {
	conn *sql.DB
	path string

	// writeMu makes Apply a single-writer section.
	writeMu sync.Mutex
}

// Open creates a new database connection at the specified path.
//
// If the database doesn't exist, it is created. Call InitSchema before use.
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open(".tasks/tasks.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		identifier TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		notes TEXT,
		complete INTEGER NOT NULL DEFAULT 0,
		priority TEXT NOT NULL DEFAULT 'normal',
		updated_at TEXT NOT NULL
	);

	-- List view order: priority, then name
	CREATE INDEX IF NOT EXISTS idx_tasks_view ON tasks(priority, name);
	CREATE INDEX IF NOT EXISTS idx_tasks_complete ON tasks(complete);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertQuery = `
	INSERT INTO tasks (identifier, name, notes, complete, priority, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(identifier) DO UPDATE SET
		name = excluded.name,
		notes = excluded.notes,
		complete = excluded.complete,
		priority = excluded.priority,
		updated_at = excluded.updated_at
	`

func upsert(ctx context.Context, ex execer, task *schema.Task) error {
	_, err := ex.ExecContext(ctx, upsertQuery,
		task.ID.String(),
		task.Name,
		notesToNullString(task.Notes),
		boolToInt(task.Complete),
		string(task.Priority),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// UpsertTask inserts or updates a single task from a local edit.
// The task must pass Validate.
func (db *DB) UpsertTask(ctx context.Context, task *schema.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	return upsert(ctx, db.conn, task)
}

// DeleteTask removes a task from the database.
// Returns nil if the task doesn't exist (idempotent).
func (db *DB) DeleteTask(ctx context.Context, id uuid.UUID) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE identifier = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// Apply writes a reconciliation batch in one transaction.
//
// Either every update and insert lands or none does. Apply holds the store's
// write lock for the whole transaction, so a concurrent edit cannot interleave
// with a partially written batch. On failure the transaction is rolled back
// and the previously committed state is left intact.
//
// Tasks are checked with ValidateRecord only: a batch carries remote values,
// and any name the remote holds is kept.
func (db *DB) Apply(ctx context.Context, updates, inserts []*schema.Task) error {
	if len(updates) == 0 && len(inserts) == 0 {
		return nil
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, task := range updates {
		if err := task.ValidateRecord(); err != nil {
			return fmt.Errorf("invalid task: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET name = ?, notes = ?, complete = ?, priority = ?, updated_at = ?
			WHERE identifier = ?`,
			task.Name,
			notesToNullString(task.Notes),
			boolToInt(task.Complete),
			string(task.Priority),
			time.Now().UTC().Format(time.RFC3339Nano),
			task.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update task %s: %w", task.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			// Deleted since the snapshot was read: write it as an insert.
			if err := upsert(ctx, tx, task); err != nil {
				return err
			}
		}
	}

	for _, task := range inserts {
		if err := task.ValidateRecord(); err != nil {
			return fmt.Errorf("invalid task: %w", err)
		}
		if err := upsert(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTaskByID retrieves a single task.
// Returns ErrNotFound if the task does not exist.
func (db *DB) GetTaskByID(ctx context.Context, id uuid.UUID) (*schema.Task, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT identifier, name, notes, complete, priority
		FROM tasks
		WHERE identifier = ?`, id.String())

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// FindTask resolves a full identifier or a unique identifier prefix.
func (db *DB) FindTask(ctx context.Context, ref string) (*schema.Task, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if id, err := uuid.Parse(ref); err == nil {
		return db.GetTaskByID(ctx, id)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT identifier, name, notes, complete, priority
		FROM tasks
		WHERE identifier LIKE ? || '%'
		LIMIT 2`, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	switch len(tasks) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return tasks[0], nil
	default:
		return nil, fmt.Errorf("ambiguous task reference %q", ref)
	}
}

// GetTasksByIDs fetches the tasks whose identifiers are in ids.
func (db *DB) GetTasksByIDs(ctx context.Context, ids []uuid.UUID) ([]*schema.Task, error) {
	if len(ids) == 0 {
		return []*schema.Task{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	query := `
		SELECT identifier, name, notes, complete, priority
		FROM tasks
		WHERE identifier IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY priority ASC, name ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by id: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListTasksFilter configures the ListTasks query.
type ListTasksFilter struct {
	// Priority filters by priority (empty = all priorities)
	Priority schema.Priority
	// Complete filters by completion (nil = both)
	Complete *bool
	// Limit restricts the number of results (0 = no limit)
	Limit int
}

// ListTasks retrieves tasks matching the filter, in list view order.
func (db *DB) ListTasks(ctx context.Context, filter ListTasksFilter) ([]*schema.Task, error) {
	var conditions []string
	var args []any

	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}

	if filter.Complete != nil {
		conditions = append(conditions, "complete = ?")
		args = append(args, boolToInt(*filter.Complete))
	}

	query := `SELECT identifier, name, notes, complete, priority FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority ASC, name ASC, identifier ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// FetchAll returns every task in the store.
func (db *DB) FetchAll(ctx context.Context) ([]*schema.Task, error) {
	return db.ListTasks(ctx, ListTasksFilter{})
}

// GetTaskCount returns the total number of tasks in the database.
func (db *DB) GetTaskCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get task count: %w", err)
	}
	return count, nil
}

// Stats summarises the task list.
type Stats struct {
	Total      int                     `json:"total"`
	Complete   int                     `json:"complete"`
	ByPriority map[schema.Priority]int `json:"by_priority"`
}

// GetStats counts tasks by priority and completion.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT priority, COUNT(*), COALESCE(SUM(complete), 0)
		FROM tasks
		GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByPriority: make(map[schema.Priority]int)}
	for rows.Next() {
		var priority string
		var count, complete int
		if err := rows.Scan(&priority, &count, &complete); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.ByPriority[schema.Priority(priority)] = count
		stats.Total += count
		stats.Complete += complete
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}
	return stats, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*schema.Task, error) {
	var (
		idStr    string
		task     schema.Task
		notes    sql.NullString
		complete int
		priority string
	)

	if err := s.Scan(&idStr, &task.Name, &notes, &complete, &priority); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt identifier %q: %w", idStr, err)
	}
	task.ID = id
	task.Complete = complete != 0
	task.Priority = schema.Priority(priority)
	if notes.Valid {
		n := notes.String
		task.Notes = &n
	}
	return &task, nil
}

// scanTasks is a helper function to scan multiple tasks from query results.
func scanTasks(rows *sql.Rows) ([]*schema.Task, error) {
	tasks := []*schema.Task{}

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func notesToNullString(notes *string) sql.NullString {
	if notes == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *notes, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
