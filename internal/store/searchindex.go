package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jivedev/jivecore/internal/embedding"
)

// IndexEntry is a row in the SearchIndex table: supplementary indexed
// content (guidance snippets, reference docs) that is not itself a
// WorkItem but should participate in the same vector/keyword search
// machinery. Grounded on the teacher's Knowledge table shape.
type IndexEntry struct {
	ID        string
	Title     string
	Content   string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Embedding []float32
}

// UpsertIndexEntry inserts or replaces an entry, regenerating its
// embedding from title+content.
func (s *Store) UpsertIndexEntry(e *IndexEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := nowUTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.Embedding = s.embedding.Embed(strings.TrimSpace(e.Title + " " + e.Content))

	return s.withWriteRetry(func() error {
		_, err := s.db.Exec(`
			INSERT INTO search_index (id, title, content, source, created_at, updated_at, embedding)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, content=excluded.content, source=excluded.source,
				updated_at=excluded.updated_at, embedding=excluded.embedding`,
			e.ID, e.Title, e.Content, e.Source, e.CreatedAt, e.UpdatedAt, embedding.Encode(e.Embedding))
		if err != nil {
			return fmt.Errorf("failed to upsert index entry: %w", err)
		}
		return nil
	})
}

// SearchIndexEntries runs a cosine-similarity vector search over the
// SearchIndex table. Keyword/hybrid search is not needed by any core
// component for this table and is intentionally not implemented.
func (s *Store) SearchIndexEntries(query string, limit int) ([]IndexEntry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	queryVec := s.embedding.Embed(query)

	rows, err := s.db.Query(`SELECT id, title, content, source, created_at, updated_at, embedding FROM search_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query search index: %w", err)
	}
	defer rows.Close()

	type scored struct {
		entry IndexEntry
		score float64
	}
	var all []scored
	for rows.Next() {
		var e IndexEntry
		var embBytes []byte
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.Source, &e.CreatedAt, &e.UpdatedAt, &embBytes); err != nil {
			return nil, err
		}
		e.Embedding = embedding.Decode(embBytes)
		all = append(all, scored{entry: e, score: embedding.CosineSimilarity(queryVec, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if limit <= 0 {
		limit = 10
	}
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]IndexEntry, len(all))
	for i, s := range all {
		out[i] = s.entry
	}
	return out, nil
}
