// Package db provides the SQLite query cache behind the dashboard.
//
// The snapshot file is the source of truth; this package mirrors it into an
// embedded SQLite database (ncruces/go-sqlite3, WAL mode) so the dashboard
// can filter and aggregate without re-reading the CSV on every request.
//
// Workflow:
//  1. A forward sync rewrites the snapshot.
//  2. The snapshot watcher notices and the dashboard calls ReplaceTasks.
//  3. HTTP handlers query the cache.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dbvcapital/statusboard/internal/schema"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cache database at path.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	cache, err := db.Open(".statusboard/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
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

// InitSchema creates the tables if they don't exist. It is idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the tables with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		area TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		task TEXT NOT NULL DEFAULT '',
		responsible TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		status_original TEXT NOT NULL DEFAULT '',
		observation TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_area ON tasks(area COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_start ON tasks(start_date);
	`
	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// ReplaceTasks swaps the cached table for rows in one transaction and
// records the load time.
func (db *DB) ReplaceTasks(rows []schema.TaskRow) error {
	return db.ReplaceTasksContext(context.Background(), rows)
}

// ReplaceTasksContext swaps the cached table with context support.
func (db *DB) ReplaceTasksContext(ctx context.Context, rows []schema.TaskRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO tasks (
		id, area, project, task, responsible,
		start_date, end_date, status, status_original, observation
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		if r.ID == "" {
			return fmt.Errorf("row %d: id is required", i)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Area, r.Project, r.Task, r.Responsible,
			r.Start, r.End, string(r.Status), r.StatusOriginal, r.Observation,
		); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('loaded_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record load time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadedAt returns when ReplaceTasks last ran; the zero time if never.
func (db *DB) LoadedAt(ctx context.Context) (time.Time, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'loaded_at'`).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read load time: %w", err)
	}
	t, _ := time.Parse(time.RFC3339, v)
	return t, nil
}

// GetTaskCount returns the number of cached tasks.
func (db *DB) GetTaskCount() (int, error) {
	return db.GetTaskCountContext(context.Background())
}

// GetTaskCountContext returns the number of cached tasks with context support.
func (db *DB) GetTaskCountContext(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// GetTaskByID returns one task. Returns sql.ErrNoRows if it is not cached.
func (db *DB) GetTaskByID(id string) (*schema.TaskRow, error) {
	return db.GetTaskByIDContext(context.Background(), id)
}

// GetTaskByIDContext returns one task with context support.
func (db *DB) GetTaskByIDContext(ctx context.Context, id string) (*schema.TaskRow, error) {
	row := db.conn.QueryRowContext(ctx, selectTasks+" WHERE id = ?", id)
	var t schema.TaskRow
	if err := scanTask(row, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasksFilter configures the ListTasks query. Empty fields match all.
type ListTasksFilter struct {
	// Area matches case-insensitively.
	Area string
	// Projects matches any of the listed project names.
	Projects []string
	// Responsible matches when the name appears in the comma-joined list.
	Responsible string
	Status      schema.Status
	// UnassignedOnly restricts to rows with no project of their own.
	UnassignedOnly bool
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

const selectTasks = `
	SELECT id, area, project, task, responsible,
	       start_date, end_date, status, status_original, observation
	FROM tasks`

// ListTasks returns the matching tasks ordered by start date, project and
// task.
func (db *DB) ListTasks(filter ListTasksFilter) ([]schema.TaskRow, error) {
	return db.ListTasksContext(context.Background(), filter)
}

// ListTasksContext returns the matching tasks with context support.
func (db *DB) ListTasksContext(ctx context.Context, filter ListTasksFilter) ([]schema.TaskRow, error) {
	var conditions []string
	var args []any

	if filter.Area != "" {
		conditions = append(conditions, "area = ? COLLATE NOCASE")
		args = append(args, filter.Area)
	}
	if len(filter.Projects) > 0 {
		conditions = append(conditions, "project IN ("+placeholders(len(filter.Projects))+")")
		for _, p := range filter.Projects {
			args = append(args, p)
		}
	}
	if filter.Responsible != "" {
		conditions = append(conditions, "(', ' || responsible || ',') LIKE ?")
		args = append(args, "%, "+filter.Responsible+",%")
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UnassignedOnly {
		conditions = append(conditions, "TRIM(project) IN ('', ?, ?, ?)")
		args = append(args, schema.DefaultProject, schema.DefaultTitle, schema.DefaultArea)
	}

	query := selectTasks
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date ASC, project ASC, task ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []schema.TaskRow
	for rows.Next() {
		var t schema.TaskRow
		if err := scanTask(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of tasks per canonical status. Every
// status is present in the result, possibly with zero.
func (db *DB) CountByStatus(ctx context.Context, area string) (map[schema.Status]int, error) {
	query := "SELECT status, COUNT(*) FROM tasks"
	var args []any
	if area != "" {
		query += " WHERE area = ? COLLATE NOCASE"
		args = append(args, area)
	}
	query += " GROUP BY status"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[schema.Status]int, len(schema.Statuses))
	for _, s := range schema.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[schema.Status(status)] += n
	}
	return counts, rows.Err()
}

// Areas returns the distinct areas, sorted.
func (db *DB) Areas(ctx context.Context) ([]string, error) {
	return db.queryStrings(ctx, "SELECT DISTINCT area FROM tasks WHERE area != '' ORDER BY area COLLATE NOCASE")
}

// Projects returns the distinct projects of area (all areas when empty).
func (db *DB) Projects(ctx context.Context, area string) ([]string, error) {
	if area == "" {
		return db.queryStrings(ctx, "SELECT DISTINCT project FROM tasks ORDER BY project")
	}
	return db.queryStrings(ctx, "SELECT DISTINCT project FROM tasks WHERE area = ? COLLATE NOCASE ORDER BY project", area)
}

// ActiveProjects returns the projects of area that still have at least one
// task not done.
func (db *DB) ActiveProjects(ctx context.Context, area string) ([]string, error) {
	query := "SELECT DISTINCT project FROM tasks WHERE status != ?"
	args := []any{string(schema.StatusDone)}
	if area != "" {
		query += " AND area = ? COLLATE NOCASE"
		args = append(args, area)
	}
	return db.queryStrings(ctx, query+" ORDER BY project", args...)
}

func (db *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner, t *schema.TaskRow) error {
	var status string
	if err := s.Scan(
		&t.ID, &t.Area, &t.Project, &t.Task, &t.Responsible,
		&t.Start, &t.End, &status, &t.StatusOriginal, &t.Observation,
	); err != nil {
		return err
	}
	t.Status = schema.Status(status)
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
