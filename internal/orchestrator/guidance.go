package orchestrator

import (
	"fmt"

	"github.com/jivedev/jivecore/internal/model"
)

// GuidanceBudget bounds how much of a task's own content the per-task
// guidance block inlines, so the block stays finite-sized regardless of how
// large a work item's description or acceptance criteria list grows.
// Adapted from the teacher's ContextBudget shape (internal/memory); the
// guidance prose itself (approach/best-practices/pitfalls) remains a host
// concern, so this only bounds the derived fields we can honestly produce
// from stored data.
type GuidanceBudget struct {
	MaxSuccessCriteria  int
	MaxDescriptionChars int
}

// DefaultGuidanceBudget mirrors the teacher's default context budget sizing.
func DefaultGuidanceBudget() GuidanceBudget {
	return GuidanceBudget{MaxSuccessCriteria: 5, MaxDescriptionChars: 500}
}

// GuidanceBlock is the per-task guidance carried alongside a dispatched
// task, per §4.6.3. Approach/Considerations/BestPractices/Pitfalls/Tools are
// left for the host to populate with AI-authored prose; this engine only
// fills the fields it can derive directly from stored data.
type GuidanceBlock struct {
	Approach        string
	Considerations  []string
	SuccessCriteria []string
	BestPractices   []string
	Pitfalls        []string
	Tools           []string
	Summary         string
}

func buildGuidance(w *model.WorkItem, budget GuidanceBudget) GuidanceBlock {
	criteria := w.AcceptanceCriteria
	if len(criteria) > budget.MaxSuccessCriteria {
		criteria = criteria[:budget.MaxSuccessCriteria]
	}

	summary := w.Description
	if len(summary) > budget.MaxDescriptionChars {
		summary = summary[:budget.MaxDescriptionChars] + "..."
	}

	return GuidanceBlock{
		SuccessCriteria: criteria,
		Summary:         summary,
	}
}

// Position renders the "k of N" task position string used in dispatch.
func Position(index, total int) string {
	return fmt.Sprintf("%d of %d", index+1, total)
}
