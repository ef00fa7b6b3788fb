package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogEntry is an append-only record of what happened during an execution
// session, written by the Orchestrator and ExecutorDriver.
type LogEntry struct {
	ID          string
	ExecutionID string
	WorkItemID  string
	Kind        string
	Message     string
	Details     string
	CreatedAt   time.Time
}

// AppendLog writes one log entry. Entries are never updated or deleted.
func (s *Store) AppendLog(e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	return s.withWriteRetry(func() error {
		_, err := s.db.Exec(`
			INSERT INTO execution_log (id, execution_id, work_item_id, kind, message, details, created_at)
			VALUES (?,?,?,?,?,?,?)`,
			e.ID, e.ExecutionID, e.WorkItemID, e.Kind, e.Message, e.Details, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to append log entry: %w", err)
		}
		return nil
	})
}

// LogForExecution returns every entry for an execution, in append order.
func (s *Store) LogForExecution(executionID string) ([]*LogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, execution_id, work_item_id, kind, message, details, created_at
		FROM execution_log WHERE execution_id=? ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution log: %w", err)
	}
	defer rows.Close()

	var out []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.ExecutionID, &e.WorkItemID, &e.Kind, &e.Message, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
