// Package resolver implements the Identifier Resolver (C2): mapping a
// free-form identifier string to a canonical WorkItem ID via a three-stage
// UUID / exact-title / keyword algorithm, grounded on the original
// project's IdentifierResolver.
package resolver

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

// Resolver maps identifiers to canonical WorkItem IDs.
type Resolver struct {
	store *store.Store
}

// New builds a Resolver backed by s.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Candidate is one item considered during resolution, surfaced by
// ResolutionInfo for debugging.
type Candidate struct {
	ID    string
	Title string
	Stage string
	Score float64
}

// ResolutionInfo is a read-only introspection result: every candidate
// considered and which stage, if any, produced a match. Supplements the
// original project's get_resolution_info() debug helper.
type ResolutionInfo struct {
	Identifier string
	Resolved   string
	Stage      string
	Candidates []Candidate
}

// Resolve implements the three-stage algorithm. It never returns an error
// for unresolvable input; it returns "" instead.
func (r *Resolver) Resolve(identifier string) (string, error) {
	id, _, err := r.resolveWithInfo(identifier, false)
	return id, err
}

// ResolveInfo runs the same algorithm but also returns every candidate
// considered, for diagnosing why an identifier did or didn't resolve.
func (r *Resolver) ResolveInfo(identifier string) (*ResolutionInfo, error) {
	id, info, err := r.resolveWithInfo(identifier, true)
	if err != nil {
		return nil, err
	}
	info.Resolved = id
	return info, nil
}

func (r *Resolver) resolveWithInfo(identifier string, trackCandidates bool) (string, *ResolutionInfo, error) {
	info := &ResolutionInfo{Identifier: identifier}
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", info, nil
	}

	// Stage 1: UUID.
	if _, err := uuid.Parse(trimmed); err == nil {
		item, err := r.store.GetWorkItem(trimmed)
		if err != nil {
			return "", info, err
		}
		if item != nil {
			info.Stage = "uuid"
			if trackCandidates {
				info.Candidates = append(info.Candidates, Candidate{ID: item.ID, Title: item.Title, Stage: "uuid", Score: 1})
			}
			return item.ID, info, nil
		}
	}

	// Stage 2: exact title.
	results, err := r.store.SearchWorkItems(trimmed, store.SearchKeyword, 25, store.WorkItemFilter{})
	if err != nil {
		return "", info, err
	}

	normalized := strings.ToLower(trimmed)
	var exact []*model.WorkItem
	for _, sw := range results {
		if trackCandidates {
			info.Candidates = append(info.Candidates, Candidate{ID: sw.Item.ID, Title: sw.Item.Title, Stage: "exact_title", Score: sw.Score})
		}
		if strings.ToLower(strings.TrimSpace(sw.Item.Title)) == normalized {
			exact = append(exact, sw.Item)
		}
	}
	if len(exact) == 1 {
		info.Stage = "exact_title"
		return exact[0].ID, info, nil
	}
	if len(exact) > 1 {
		best := exact[0]
		for _, candidate := range exact[1:] {
			if candidate.UpdatedAt.After(best.UpdatedAt) {
				best = candidate
				continue
			}
			if candidate.UpdatedAt.Equal(best.UpdatedAt) {
				if candidate.CreatedAt.After(best.CreatedAt) {
					best = candidate
					continue
				}
				if candidate.CreatedAt.Equal(best.CreatedAt) && candidate.ID < best.ID {
					best = candidate
				}
			}
		}
		info.Stage = "exact_title"
		return best.ID, info, nil
	}

	// Stage 3: keyword scoring.
	keywordResults, err := r.store.SearchWorkItems(trimmed, store.SearchKeyword, 5, store.WorkItemFilter{})
	if err != nil {
		return "", info, err
	}

	type scoredCandidate struct {
		id    string
		title string
		score float64
	}
	var scored []scoredCandidate
	for _, sw := range keywordResults {
		titleHit := strings.Contains(strings.ToLower(sw.Item.Title), normalized)
		descHit := strings.Contains(strings.ToLower(sw.Item.Description), normalized)
		score := 0.0
		if titleHit {
			score += 10
		}
		if descHit {
			score += 5
		}
		score += 2 * sw.Score
		scored = append(scored, scoredCandidate{id: sw.Item.ID, title: sw.Item.Title, score: score})
		if trackCandidates {
			info.Candidates = append(info.Candidates, Candidate{ID: sw.Item.ID, Title: sw.Item.Title, Stage: "keyword", Score: score})
		}
	}

	if len(scored) == 0 {
		return "", info, nil
	}

	best := scored[0]
	unique := true
	for _, c := range scored[1:] {
		if c.score > best.score {
			best = c
			unique = true
		} else if c.score == best.score {
			unique = false
		}
	}
	if unique && best.score > 0 {
		info.Stage = "keyword"
		return best.id, info, nil
	}
	return "", info, nil
}
