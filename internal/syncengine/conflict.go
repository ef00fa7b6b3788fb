package syncengine

import (
	"time"

	"github.com/jivedev/jivecore/internal/model"
)

// detectConflicts compares the fields named in §4.5.1: title, description,
// status, priority, assignee, plus updated_at when both sides carry one.
func detectConflicts(existing, incoming *model.WorkItem) []string {
	var conflicts []string
	if existing.Title != incoming.Title {
		conflicts = append(conflicts, "title")
	}
	if existing.Description != incoming.Description {
		conflicts = append(conflicts, "description")
	}
	if existing.Status != incoming.Status {
		conflicts = append(conflicts, "status")
	}
	if existing.Priority != incoming.Priority {
		conflicts = append(conflicts, "priority")
	}
	if existing.Assignee != incoming.Assignee {
		conflicts = append(conflicts, "assignee")
	}
	if !existing.UpdatedAt.IsZero() && !incoming.UpdatedAt.IsZero() && !existing.UpdatedAt.Equal(incoming.UpdatedAt) {
		conflicts = append(conflicts, "updated_at")
	}
	return conflicts
}

// applyMergeStrategy produces the resolved record for a non-manual
// strategy. The caller has already downgraded create_branch to
// manual_resolution, so only the remaining three strategies reach here.
func applyMergeStrategy(strategy MergeStrategy, existing, incoming *model.WorkItem) *model.WorkItem {
	switch strategy {
	case StrategyFileWins:
		resolved := *incoming
		return &resolved
	case StrategyDatabaseWins:
		resolved := *existing
		return &resolved
	case StrategyAutoMerge:
		return autoMerge(existing, incoming)
	default:
		resolved := *existing
		return &resolved
	}
}

// autoMerge takes the side with the larger updated_at as its base, then
// unions the list-valued fields (tags, dependencies) from both sides.
func autoMerge(existing, incoming *model.WorkItem) *model.WorkItem {
	base := existing
	if incoming.UpdatedAt.After(existing.UpdatedAt) {
		base = incoming
	}

	resolved := *base
	resolved.Tags = unionStrings(existing.Tags, incoming.Tags)
	resolved.Dependencies = unionStrings(existing.Dependencies, incoming.Dependencies)
	resolved.UpdatedAt = time.Now().UTC()
	return &resolved
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
