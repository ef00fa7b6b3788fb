package store

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/jivedev/jivecore/internal/embedding"
	"github.com/jivedev/jivecore/internal/model"
)

// SearchKind selects the retrieval strategy for Search.
type SearchKind string

const (
	SearchVector  SearchKind = "vector"
	SearchKeyword SearchKind = "keyword"
	SearchHybrid  SearchKind = "hybrid"
)

// ScoredWorkItem pairs a result with the score search ranked it by.
type ScoredWorkItem struct {
	Item  *model.WorkItem
	Score float64
}

// SearchWorkItems implements the vector/keyword/hybrid contract of §4.1.
// An empty query returns an empty result list, never an error.
func (s *Store) SearchWorkItems(query string, kind SearchKind, limit int, filter WorkItemFilter) ([]ScoredWorkItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	switch kind {
	case SearchVector:
		return s.vectorSearch(query, limit, filter)
	case SearchKeyword:
		return s.keywordSearch(query, limit, filter)
	case SearchHybrid:
		half := limit / 2
		if half == 0 {
			half = 1
		}
		vec, err := s.vectorSearch(query, half, filter)
		if err != nil {
			return nil, err
		}
		kw, err := s.keywordSearch(query, half, filter)
		if err != nil {
			return nil, err
		}
		return mergeByID(vec, kw, limit), nil
	default:
		return nil, model.NewError(model.ErrValidation, fmt.Sprintf("unknown search kind %q", kind))
	}
}

func (s *Store) vectorSearch(query string, limit int, filter WorkItemFilter) ([]ScoredWorkItem, error) {
	queryVec := s.embedding.Embed(query)

	items, err := s.ListWorkItems(filter, "created_at", true, 100000, 0)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredWorkItem, 0, len(items))
	for _, item := range items {
		score := embedding.CosineSimilarity(queryVec, item.Embedding)
		scored = append(scored, ScoredWorkItem{Item: item, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// keywordSearch uses the FTS5 index once it exists; otherwise it falls
// back to a substring match over title/description, per §4.1. The FTS
// index is built lazily the first time this is called against a non-empty
// table.
func (s *Store) keywordSearch(query string, limit int, filter WorkItemFilter) ([]ScoredWorkItem, error) {
	if s.enableFTS {
		if err := s.ensureWorkItemFTS(); err != nil {
			log.Printf("[STORE] FTS unavailable, falling back to substring search: %v", err)
		} else if s.ftsReady[TableWorkItem] {
			results, err := s.ftsSearch(query, limit, filter)
			if err == nil {
				return results, nil
			}
			log.Printf("[STORE] FTS query failed, falling back to substring search: %v", err)
		}
	}
	return s.substringSearch(query, limit, filter)
}

func (s *Store) ensureWorkItemFTS() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ftsReady[TableWorkItem] {
		return nil
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM work_items`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count work items: %w", err)
	}
	if count == 0 {
		// Per §4.1, the index is created lazily only after the table is
		// non-empty; an empty table keeps falling back to substring search.
		return fmt.Errorf("work_items table is empty")
	}

	if _, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS work_items_fts USING fts5(
			id UNINDEXED, title, description, content='work_items', content_rowid='rowid'
		)`); err != nil {
		return fmt.Errorf("failed to create fts index: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO work_items_fts(rowid, id, title, description)
		SELECT rowid, id, title, description FROM work_items
		WHERE rowid NOT IN (SELECT rowid FROM work_items_fts)`); err != nil {
		return fmt.Errorf("failed to populate fts index: %w", err)
	}

	s.ftsReady[TableWorkItem] = true
	return nil
}

func (s *Store) ftsSearch(query string, limit int, filter WorkItemFilter) ([]ScoredWorkItem, error) {
	rows, err := s.db.Query(`
		SELECT w.id, w.type, w.title, w.description, w.status, w.priority, w.complexity,
			w.parent_id, w.dependencies, w.acceptance_criteria, w.progress_percentage,
			w.tags, w.metadata, w.assignee, w.created_at, w.updated_at, w.embedding,
			bm25(work_items_fts) AS rank
		FROM work_items_fts
		JOIN work_items w ON w.id = work_items_fts.id
		WHERE work_items_fts MATCH ?
		ORDER BY rank LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredWorkItem
	for rows.Next() {
		var w model.WorkItem
		var deps, criteria, tags, metadata string
		var embBytes []byte
		var rank float64
		if err := rows.Scan(&w.ID, &w.Type, &w.Title, &w.Description, &w.Status, &w.Priority, &w.Complexity,
			&w.ParentID, &deps, &criteria, &w.ProgressPercentage, &tags, &metadata, &w.Assignee,
			&w.CreatedAt, &w.UpdatedAt, &embBytes, &rank); err != nil {
			return nil, err
		}
		w.Dependencies = unmarshalStrings(deps)
		w.AcceptanceCriteria = unmarshalStrings(criteria)
		w.Tags = unmarshalStrings(tags)
		w.Metadata = unmarshalMap(metadata)
		w.Embedding = embedding.Decode(embBytes)
		if !matchesFilter(&w, filter) {
			continue
		}
		// bm25 is negative and smaller-is-better; invert to a positive
		// relevance score comparable across queries.
		out = append(out, ScoredWorkItem{Item: &w, Score: -rank})
	}
	return out, rows.Err()
}

// ftsQuery quotes the raw phrase so FTS5 treats punctuation literally
// instead of as query-syntax operators.
func ftsQuery(q string) string {
	escaped := strings.ReplaceAll(q, `"`, `""`)
	return `"` + escaped + `"`
}

func (s *Store) substringSearch(query string, limit int, filter WorkItemFilter) ([]ScoredWorkItem, error) {
	items, err := s.ListWorkItems(filter, "created_at", true, 100000, 0)
	if err != nil {
		return nil, err
	}
	lowerQ := strings.ToLower(query)

	var out []ScoredWorkItem
	for _, item := range items {
		titleHit := strings.Contains(strings.ToLower(item.Title), lowerQ)
		descHit := strings.Contains(strings.ToLower(item.Description), lowerQ)
		if !titleHit && !descHit {
			continue
		}
		score := 0.0
		if titleHit {
			score += 2
		}
		if descHit {
			score += 1
		}
		out = append(out, ScoredWorkItem{Item: item, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(w *model.WorkItem, filter WorkItemFilter) bool {
	if len(filter.Type) > 0 && !containsType(filter.Type, w.Type) {
		return false
	}
	if len(filter.Status) > 0 && !containsStatus(filter.Status, w.Status) {
		return false
	}
	if len(filter.Priority) > 0 && !containsPriority(filter.Priority, w.Priority) {
		return false
	}
	if filter.ParentID != nil && *filter.ParentID != w.ParentID {
		return false
	}
	return true
}

func containsType(list []model.ItemType, v model.ItemType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsStatus(list []model.Status, v model.Status) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsPriority(list []model.Priority, v model.Priority) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// mergeByID merges a and b, keeping first-seen order across a then b, and
// caps the result at limit, per the hybrid search contract.
func mergeByID(a, b []ScoredWorkItem, limit int) []ScoredWorkItem {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]ScoredWorkItem, 0, limit)
	for _, list := range [][]ScoredWorkItem{a, b} {
		for _, sw := range list {
			if seen[sw.Item.ID] {
				continue
			}
			seen[sw.Item.ID] = true
			out = append(out, sw)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}
