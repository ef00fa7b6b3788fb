package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks one ExecutorDriver-owned background task row.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is a row in the Task table: one child work item's progress within
// a background ExecutorDriver run.
type Task struct {
	ID                 string
	WorkItemID         string
	ExecutionID        string
	Status             TaskStatus
	ProgressPercentage float64
	Details            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// CreateTask inserts a new task row.
func (s *Store) CreateTask(t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := nowUTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = TaskPending
	}
	return s.withWriteRetry(func() error {
		_, err := s.db.Exec(`
			INSERT INTO tasks (id, work_item_id, execution_id, status, progress_percentage, details, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			t.ID, t.WorkItemID, t.ExecutionID, string(t.Status), t.ProgressPercentage, t.Details, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		return nil
	})
}

// UpdateTaskProgress sets status/progress/details and bumps updated_at,
// stamping completed_at when the task reaches a terminal status.
func (s *Store) UpdateTaskProgress(id string, status TaskStatus, progress float64, details string) error {
	now := nowUTC()
	var completedAt *time.Time
	if status == TaskCompleted || status == TaskFailed || status == TaskCancelled {
		completedAt = &now
	}
	return s.withWriteRetry(func() error {
		_, err := s.db.Exec(`
			UPDATE tasks SET status=?, progress_percentage=?, details=?, updated_at=?, completed_at=?
			WHERE id=?`, string(status), progress, details, now, completedAt, id)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return nil
	})
}

// TasksForExecution returns every task row belonging to an execution, in
// creation order.
func (s *Store) TasksForExecution(executionID string) ([]*Task, error) {
	rows, err := s.db.Query(`
		SELECT id, work_item_id, execution_id, status, progress_percentage, details, created_at, updated_at, completed_at
		FROM tasks WHERE execution_id=? ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		var t Task
		var status string
		var completedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.WorkItemID, &t.ExecutionID, &status, &t.ProgressPercentage,
			&t.Details, &t.CreatedAt, &t.UpdatedAt, &completedAt); err != nil {
			return nil, err
		}
		t.Status = TaskStatus(status)
		if completedAt.Valid {
			t.CompletedAt = &completedAt.Time
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
