package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jivedev/jivecore/internal/embedding"
	"github.com/jivedev/jivecore/internal/model"
)

// CreateWorkItem validates, embeds, timestamps, and inserts w. If w.ID is
// empty a new UUID is assigned.
func (s *Store) CreateWorkItem(w *model.WorkItem) error {
	if err := checkTable(TableWorkItem); err != nil {
		return model.WrapError(model.ErrNotFound, "create_work_item", err)
	}
	if strings.TrimSpace(w.Title) == "" {
		return model.NewError(model.ErrValidation, "title must not be empty")
	}
	if len(w.Title) > 200 {
		return model.NewError(model.ErrValidation, "title exceeds 200 characters")
	}
	if !w.Type.Valid() {
		return model.NewError(model.ErrValidation, fmt.Sprintf("invalid type %q", w.Type))
	}

	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := nowUTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	if w.Status == "" {
		w.Status = model.StatusBacklog
	}
	if w.Priority == "" {
		w.Priority = model.PriorityMedium
	}

	canonical, wasAlias := model.NormalizeStatus(w.Status)
	if wasAlias {
		log.Printf("[STORE] mixed status vocabulary for %s", w.ID)
	}
	w.Status = canonical

	w.Embedding = s.embedding.Embed(w.EmbeddingText())
	if s.normalizeVectors {
		w.Embedding = embedding.Normalize(w.Embedding)
	}

	return s.withWriteRetry(func() error {
		_, err := s.db.Exec(`
			INSERT INTO work_items (
				id, type, title, description, status, priority, complexity,
				parent_id, dependencies, acceptance_criteria, progress_percentage,
				tags, metadata, assignee, created_at, updated_at, embedding,
				used_alias_vocabulary
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			w.ID, string(w.Type), w.Title, w.Description, string(w.Status), string(w.Priority), string(w.Complexity),
			w.ParentID, marshalStrings(w.Dependencies), marshalStrings(w.AcceptanceCriteria), w.ProgressPercentage,
			marshalStrings(w.Tags), marshalMap(w.Metadata), w.Assignee, w.CreatedAt, w.UpdatedAt, embedding.Encode(w.Embedding),
			boolToInt(wasAlias),
		)
		if err != nil {
			return fmt.Errorf("failed to insert work item: %w", err)
		}
		return nil
	})
}

// WorkItemUpdate is a partial update; nil fields are left unchanged.
type WorkItemUpdate struct {
	Title              *string
	Description        *string
	Status             *model.Status
	Priority           *model.Priority
	Complexity         *model.Complexity
	ParentID           *string
	Dependencies       []string
	AcceptanceCriteria []string
	ProgressPercentage *float64
	Tags               []string
	Metadata           map[string]string
	Assignee           *string
}

// UpdateWorkItem merges u into the existing record, regenerating the
// embedding iff title or description changed, per invariant 3.2(5).
func (s *Store) UpdateWorkItem(id string, u WorkItemUpdate) (*model.WorkItem, error) {
	w, err := s.GetWorkItem(id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, model.NewError(model.ErrNotFound, fmt.Sprintf("work item %s not found", id))
	}

	textChanged := false
	if u.Title != nil && *u.Title != w.Title {
		if strings.TrimSpace(*u.Title) == "" {
			return nil, model.NewError(model.ErrValidation, "title must not be empty")
		}
		w.Title = *u.Title
		textChanged = true
	}
	if u.Description != nil && *u.Description != w.Description {
		w.Description = *u.Description
		textChanged = true
	}
	if u.Status != nil {
		canonical, wasAlias := model.NormalizeStatus(*u.Status)
		if wasAlias {
			log.Printf("[STORE] mixed status vocabulary for %s", id)
		}
		w.Status = canonical
	}
	if u.Priority != nil {
		w.Priority = *u.Priority
	}
	if u.Complexity != nil {
		w.Complexity = *u.Complexity
	}
	if u.ParentID != nil {
		w.ParentID = *u.ParentID
	}
	if u.Dependencies != nil {
		w.Dependencies = u.Dependencies
	}
	if u.AcceptanceCriteria != nil {
		w.AcceptanceCriteria = u.AcceptanceCriteria
	}
	if u.ProgressPercentage != nil {
		w.ProgressPercentage = *u.ProgressPercentage
	}
	if u.Tags != nil {
		w.Tags = u.Tags
	}
	if u.Metadata != nil {
		w.Metadata = u.Metadata
	}
	if u.Assignee != nil {
		w.Assignee = *u.Assignee
	}

	if model.IsTerminalDone(w.Status) {
		w.ProgressPercentage = 100
	} else if model.IsBacklog(w.Status) {
		w.ProgressPercentage = 0
	}

	w.UpdatedAt = nowUTC()
	if textChanged {
		w.Embedding = s.embedding.Embed(w.EmbeddingText())
		if s.normalizeVectors {
			w.Embedding = embedding.Normalize(w.Embedding)
		}
	}

	err = s.withWriteRetry(func() error {
		_, err := s.db.Exec(`
			UPDATE work_items SET
				type=?, title=?, description=?, status=?, priority=?, complexity=?,
				parent_id=?, dependencies=?, acceptance_criteria=?, progress_percentage=?,
				tags=?, metadata=?, assignee=?, updated_at=?, embedding=?
			WHERE id=?`,
			string(w.Type), w.Title, w.Description, string(w.Status), string(w.Priority), string(w.Complexity),
			w.ParentID, marshalStrings(w.Dependencies), marshalStrings(w.AcceptanceCriteria), w.ProgressPercentage,
			marshalStrings(w.Tags), marshalMap(w.Metadata), w.Assignee, w.UpdatedAt, embedding.Encode(w.Embedding),
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to update work item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorkItem returns the record or (nil, nil) if absent.
func (s *Store) GetWorkItem(id string) (*model.WorkItem, error) {
	row := s.db.QueryRow(`
		SELECT id, type, title, description, status, priority, complexity,
			parent_id, dependencies, acceptance_criteria, progress_percentage,
			tags, metadata, assignee, created_at, updated_at, embedding
		FROM work_items WHERE id=?`, id)
	w, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return w, nil
}

// DeleteWorkItem removes a record, reporting whether one existed.
func (s *Store) DeleteWorkItem(id string) (bool, error) {
	var deleted bool
	err := s.withWriteRetry(func() error {
		res, err := s.db.Exec(`DELETE FROM work_items WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete work item: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// WorkItemFilter narrows ListWorkItems to field-equals or field-in-set
// predicates.
type WorkItemFilter struct {
	Type     []model.ItemType
	Status   []model.Status
	Priority []model.Priority
	ParentID *string
}

// ListWorkItems returns a filtered, sorted, paginated page of work items.
// Ties in sortBy are broken by id ascending for stable pagination.
func (s *Store) ListWorkItems(filter WorkItemFilter, sortBy string, ascending bool, limit, offset int) ([]*model.WorkItem, error) {
	where := []string{"1=1"}
	var args []any

	if len(filter.Type) > 0 {
		where = append(where, inClause("type", len(filter.Type)))
		for _, t := range filter.Type {
			args = append(args, string(t))
		}
	}
	if len(filter.Status) > 0 {
		where = append(where, inClause("status", len(filter.Status)))
		for _, st := range filter.Status {
			args = append(args, string(st))
		}
	}
	if len(filter.Priority) > 0 {
		where = append(where, inClause("priority", len(filter.Priority)))
		for _, p := range filter.Priority {
			args = append(args, string(p))
		}
	}
	if filter.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}

	if sortBy == "" {
		sortBy = "created_at"
	}
	if !allowedSortColumn(sortBy) {
		sortBy = "created_at"
	}
	dir := "ASC"
	if !ascending {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, type, title, description, status, priority, complexity,
			parent_id, dependencies, acceptance_criteria, progress_percentage,
			tags, metadata, assignee, created_at, updated_at, embedding
		FROM work_items WHERE %s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`,
		strings.Join(where, " AND "), sortBy, dir)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	var out []*model.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item row: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

var allowedSortColumns = map[string]bool{
	"created_at": true, "updated_at": true, "title": true, "priority": true,
	"status": true, "type": true, "progress_percentage": true, "id": true,
}

func allowedSortColumn(col string) bool { return allowedSortColumns[col] }

func inClause(col string, n int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", n), ",")
	return fmt.Sprintf("%s IN (%s)", col, placeholders)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(row rowScanner) (*model.WorkItem, error) {
	var w model.WorkItem
	var deps, criteria, tags, metadata string
	var embBytes []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(&w.ID, &w.Type, &w.Title, &w.Description, &w.Status, &w.Priority, &w.Complexity,
		&w.ParentID, &deps, &criteria, &w.ProgressPercentage, &tags, &metadata, &w.Assignee,
		&createdAt, &updatedAt, &embBytes)
	if err != nil {
		return nil, err
	}

	w.CreatedAt = createdAt
	w.UpdatedAt = updatedAt
	w.Dependencies = unmarshalStrings(deps)
	w.AcceptanceCriteria = unmarshalStrings(criteria)
	w.Tags = unmarshalStrings(tags)
	w.Metadata = unmarshalMap(metadata)
	w.Embedding = embedding.Decode(embBytes)
	return &w, nil
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(s string) []string {
	var out []string
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func marshalMap(m map[string]string) string {
	if m == nil {
		m = map[string]string{}
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalMap(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
