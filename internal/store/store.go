// Package store provides SQLite-backed persistence for devcoach.
//
// All instants are written in UTC. Every record handed back to callers has its
// instants converted to the configured local zone.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/cleaver/open-dev-coach/internal/timezone"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the devcoach SQLite database.
type Store struct {
	db *sql.DB
	tz *timezone.Boundary
}

// New creates a new Store and runs migrations. A nil tz converts to UTC.
func New(dbPath string, tz *timezone.Boundary) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if tz == nil {
		tz = timezone.New(nil)
	}

	s := &Store{db: db, tz: tz}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// UTC returns a view of the store that hands records back in UTC. It shares
// the database and clock, so it keeps working when the configured zone cannot
// be resolved. Closing either closes both.
func (s *Store) UTC() *Store {
	return &Store{db: s.db, tz: s.tz.UTC()}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		started_at DATETIME,
		completed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkins (
		id TEXT PRIMARY KEY,
		scheduled_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		description TEXT,
		last_triggered_at DATETIME,
		completed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_checkins_status_scheduled ON checkins(status, scheduled_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Operations ---

const taskColumns = `id, description, status, started_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&task.ID, &task.Description, &task.Status, &startedAt, &completedAt, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return task, nil
}

func (s *Store) localTask(task *models.Task) (*models.Task, error) {
	var err error
	if task.CreatedAt, err = s.tz.ToLocal(task.CreatedAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = s.tz.ToLocal(task.UpdatedAt); err != nil {
		return nil, err
	}
	if task.StartedAt, err = s.tz.ToLocalPtr(task.StartedAt); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = s.tz.ToLocalPtr(task.CompletedAt); err != nil {
		return nil, err
	}
	return task, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", models.NewValidationError("description", "is required")
	}
	if n := utf8.RuneCountInString(description); n > models.MaxTaskDescription {
		return "", models.NewValidationError("description", "is %d characters, maximum is %d", n, models.MaxTaskDescription)
	}
	return description, nil
}

// CreateTask inserts a new pending task.
func (s *Store) CreateTask(ctx context.Context, description string) (*models.Task, error) {
	description, err := validateDescription(description)
	if err != nil {
		return nil, err
	}

	now := s.tz.Now()
	task := &models.Task{
		ID:          uuid.New().String(),
		Description: description,
		Status:      models.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, description, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		task.ID, task.Description, task.Status, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.localTask(task)
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := getTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.localTask(task)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getTask(ctx context.Context, q queryRower, id string) (*models.Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns all tasks in creation order, optionally filtered by status.
func (s *Store) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}

	if status != "" {
		if !status.IsValid() {
			return nil, models.NewValidationError("status", "unknown task status %q", status)
		}
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if task, err = s.localTask(task); err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CurrentTask returns the in-progress task, or nil when nothing is being worked on.
func (s *Store) CurrentTask(ctx context.Context) (*models.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		models.TaskStatusInProgress,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query current task: %w", err)
	}
	return s.localTask(task)
}

// CountTasksByStatus returns the number of tasks in each status.
func (s *Store) CountTasksByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// UpdateTaskDescription replaces a task's description.
func (s *Store) UpdateTaskDescription(ctx context.Context, id, description string) (*models.Task, error) {
	description, err := validateDescription(description)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET description = ?, updated_at = ? WHERE id = ?`,
		description, s.tz.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := expectAffected(result, "task", id); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// TransitionResult holds the outcome of a status change.
type TransitionResult struct {
	Task *models.Task
	// Held lists the tasks that were in progress and have been put on hold.
	Held []models.Task
}

// StartTask atomically puts every in-progress task on hold and marks id as in
// progress. If id does not exist nothing is changed and ErrNotFound is returned.
func (s *Store) StartTask(ctx context.Context, id string) (*TransitionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.tz.Now()

	// Step 1: Collect the tasks about to be put on hold
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM tasks WHERE status = ? AND id != ?`,
		models.TaskStatusInProgress, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query active tasks: %w", err)
	}
	var heldIDs []string
	for rows.Next() {
		var heldID string
		if err := rows.Scan(&heldID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan active task: %w", err)
		}
		heldIDs = append(heldIDs, heldID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Step 2: Put them on hold
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ? AND id != ?`,
		models.TaskStatusOnHold, now, models.TaskStatusInProgress, id,
	); err != nil {
		return nil, fmt.Errorf("hold active tasks: %w", err)
	}

	// Step 3: Start the requested task; a missing id rolls back step 2
	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, started_at = ?, updated_at = ? WHERE id = ?`,
		models.TaskStatusInProgress, now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("start task: %w", err)
	}
	if err := expectAffected(result, "task", id); err != nil {
		return nil, err
	}

	task, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	held := make([]models.Task, 0, len(heldIDs))
	for _, heldID := range heldIDs {
		h, err := getTask(ctx, tx, heldID)
		if err != nil {
			return nil, err
		}
		held = append(held, *h)
	}

	// Step 4: Commit transaction
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	res := &TransitionResult{Held: held}
	if res.Task, err = s.localTask(task); err != nil {
		return nil, err
	}
	for i := range res.Held {
		if _, err := s.localTask(&res.Held[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// CompleteTask marks a task completed. Other tasks are untouched.
func (s *Store) CompleteTask(ctx context.Context, id string) (*models.Task, error) {
	now := s.tz.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		models.TaskStatusCompleted, now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if err := expectAffected(result, "task", id); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// HoldTask puts a task on hold.
func (s *Store) HoldTask(ctx context.Context, id string) (*models.Task, error) {
	res, err := s.SetTaskStatus(ctx, id, models.TaskStatusOnHold)
	if err != nil {
		return nil, err
	}
	return res.Task, nil
}

// SetTaskStatus moves a task to any status. In-progress goes through StartTask
// and completed through CompleteTask so the single active task rule and the
// timestamps are kept.
func (s *Store) SetTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*TransitionResult, error) {
	switch {
	case !status.IsValid():
		return nil, models.NewValidationError("status", "unknown task status %q", status)
	case status == models.TaskStatusInProgress:
		return s.StartTask(ctx, id)
	case status == models.TaskStatusCompleted:
		task, err := s.CompleteTask(ctx, id)
		if err != nil {
			return nil, err
		}
		return &TransitionResult{Task: task}, nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.tz.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	if err := expectAffected(result, "task", id); err != nil {
		return nil, err
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Task: task}, nil
}

// DeleteTask removes a task regardless of its status.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectAffected(result, "task", id)
}

func expectAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return nil
}

// utc normalises an optional instant for storage.
func utc(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
