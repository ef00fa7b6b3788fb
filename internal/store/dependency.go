package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jivedev/jivecore/internal/model"
)

// CreateDependency inserts a dependency edge, assigning an ID if missing.
func (s *Store) CreateDependency(d *model.Dependency) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return s.withWriteRetry(func() error {
		_, err := s.db.Exec(`INSERT INTO dependencies (id, source_id, target_id, kind) VALUES (?,?,?,?)`,
			d.ID, d.SourceID, d.TargetID, string(d.Kind))
		if err != nil {
			return fmt.Errorf("failed to insert dependency: %w", err)
		}
		return nil
	})
}

// DeleteDependency removes an edge by ID, reporting whether one existed.
func (s *Store) DeleteDependency(id string) (bool, error) {
	var deleted bool
	err := s.withWriteRetry(func() error {
		res, err := s.db.Exec(`DELETE FROM dependencies WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete dependency: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// DependenciesFor returns every edge with ids on either end, used by
// DependencyEngine to build a subgraph over a work-item set.
func (s *Store) DependenciesFor(ids []string) ([]*model.Dependency, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := inClause("source_id", len(ids))
	args := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	targetPlaceholders := inClause("target_id", len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, source_id, target_id, kind FROM dependencies WHERE %s OR %s`,
		placeholders, targetPlaceholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var out []*model.Dependency
	for rows.Next() {
		var d model.Dependency
		var kind string
		if err := rows.Scan(&d.ID, &d.SourceID, &d.TargetID, &kind); err != nil {
			return nil, err
		}
		d.Kind = model.DependencyKind(kind)
		out = append(out, &d)
	}
	return out, rows.Err()
}
