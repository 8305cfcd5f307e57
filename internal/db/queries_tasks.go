package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// Task lifecycle statuses. Status records the outcome of the most recent
// execution; eligibility for dispatch is driven entirely by the next_run
// cursor, so a completed recurring task runs again once its cursor elapses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
	TaskCancelled = "cancelled"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is running")
)

type Task struct {
	ID         int64  `json:"id"`
	PersonaID  string `json:"personality_id"`
	UserID     string `json:"user_id,omitempty"`
	Type       string `json:"task_type"`
	Payload    string `json:"task_data"` // opaque JSON
	Recurrence string `json:"schedule,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	LastRun    string `json:"last_run,omitempty"`
	NextRun    string `json:"next_run,omitempty"` // empty means never auto-dispatched
	RunCount   int64  `json:"run_count"`
	Result     string `json:"result,omitempty"`
}

const taskColumns = "id, personality_id, COALESCE(user_id,''), task_type, task_data, COALESCE(schedule,''), status, created_at, COALESCE(last_run,''), COALESCE(next_run,''), run_count, COALESCE(result,'')"

// InsertTask stores a new pending task. nextRun is the precomputed cursor;
// empty means the task never auto-dispatches.
func (d *DB) InsertTask(personaID, userID, taskType, payload, recurrence, nextRun string) (*Task, error) {
	res, err := d.conn.Exec(
		"INSERT INTO tasks (personality_id, user_id, task_type, task_data, schedule, next_run) VALUES (?, ?, ?, ?, ?, ?)",
		personaID, nullStr(userID), taskType, payload, nullStr(recurrence), nullStr(nextRun),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return d.GetTask(id)
}

func (d *DB) GetTask(id int64) (*Task, error) {
	row := d.conn.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return t, nil
}

// ListTasks AND-combines the given filters; empty strings mean no filter.
// Ordered by next_run ascending. Tasks without a cursor sort first, which
// is sqlite's NULL ordering — implementation-defined, relied on by nothing.
func (d *DB) ListTasks(personaID, status, userID string) ([]Task, error) {
	q := "SELECT " + taskColumns + " FROM tasks WHERE 1=1"
	var args []any
	if personaID != "" {
		q += " AND personality_id = ?"
		args = append(args, personaID)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}
	if userID != "" {
		q += " AND user_id = ?"
		args = append(args, userID)
	}
	q += " ORDER BY next_run ASC"

	rows, err := d.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// DueTasks returns dispatchable tasks: cursor set and elapsed, not
// currently running, not cancelled. Ordered by next_run ascending.
func (d *DB) DueTasks(now string) ([]Task, error) {
	rows, err := d.conn.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE next_run IS NOT NULL AND next_run <= ? AND status NOT IN (?, ?) ORDER BY next_run ASC",
		now, TaskRunning, TaskCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("listing due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// MarkTaskRunning transitions a task into the running state and stamps
// last_run.
func (d *DB) MarkTaskRunning(id int64) error {
	_, err := d.conn.Exec(
		"UPDATE tasks SET status = ?, last_run = datetime('now') WHERE id = ?",
		TaskRunning, id,
	)
	if err != nil {
		return fmt.Errorf("marking task %d running: %w", id, err)
	}
	return nil
}

// FinishTask records an execution outcome (completed or failed) with the
// handler's result and advances the cursor in the same update. An empty
// nextRun clears the cursor, retiring the task from dispatch.
func (d *DB) FinishTask(id int64, status, result, nextRun string) error {
	_, err := d.conn.Exec(
		"UPDATE tasks SET status = ?, result = ?, run_count = run_count + 1, next_run = ? WHERE id = ?",
		status, result, nullStr(nextRun), id,
	)
	if err != nil {
		return fmt.Errorf("finishing task %d: %w", id, err)
	}
	return nil
}

// CancelTask is a terminal transition. Running tasks are refused with
// ErrTaskRunning.
func (d *DB) CancelTask(id int64) error {
	res, err := d.conn.Exec(
		"UPDATE tasks SET status = ?, next_run = NULL WHERE id = ? AND status != ?",
		TaskCancelled, id, TaskRunning,
	)
	if err != nil {
		return fmt.Errorf("cancelling task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := d.GetTask(id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %d", ErrTaskRunning, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.PersonaID, &t.UserID, &t.Type, &t.Payload, &t.Recurrence,
		&t.Status, &t.CreatedAt, &t.LastRun, &t.NextRun, &t.RunCount, &t.Result)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
