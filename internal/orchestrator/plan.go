package orchestrator

import (
	"sort"

	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/hierarchy"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/resolver"
	"github.com/jivedev/jivecore/internal/store"
)

// BuildPlan resolves rootIdentifier, collects [root] union children(root,
// recursive=true), orders them per order, and wraps each as a ready
// TaskSlot, per §4.6.1. When order is dependency_order, d.ExecutionOrder is
// consulted over the collected set so the plan respects depends_on/blocks
// edges rather than just type rank; a cycle falls back to the structural
// type-rank-then-priority ordering (Validate is what surfaces the cycle
// itself).
func BuildPlan(s *store.Store, r *resolver.Resolver, h *hierarchy.Manager, d *depgraph.Engine, rootIdentifier string, order model.PlanOrder) (string, []model.TaskSlot, error) {
	rootID, err := r.Resolve(rootIdentifier)
	if err != nil {
		return "", nil, err
	}
	if rootID == "" {
		return "", nil, model.NewError(model.ErrNotFound, "could not resolve "+rootIdentifier+" to a work item")
	}

	root, err := s.GetWorkItem(rootID)
	if err != nil {
		return "", nil, err
	}
	if root == nil {
		return "", nil, model.NewError(model.ErrNotFound, "work item "+rootID+" not found")
	}

	descendants, err := h.Children(rootID, true)
	if err != nil {
		return "", nil, err
	}

	items := append([]*model.WorkItem{root}, descendants...)

	if order == model.OrderDependency && d != nil && len(items) > 1 {
		ids := make([]string, len(items))
		byID := make(map[string]*model.WorkItem, len(items))
		for i, w := range items {
			ids[i] = w.ID
			byID[w.ID] = w
		}
		topo, acyclic, err := d.ExecutionOrder(ids)
		if err != nil {
			return "", nil, err
		}
		if acyclic {
			ordered := make([]*model.WorkItem, 0, len(items))
			for _, id := range topo {
				if w, ok := byID[id]; ok {
					ordered = append(ordered, w)
				}
			}
			items = ordered
		} else {
			sortItems(items, order)
		}
	} else {
		sortItems(items, order)
	}

	plan := make([]model.TaskSlot, len(items))
	for i, w := range items {
		plan[i] = model.TaskSlot{ID: w.ID, Order: i, Status: model.SlotReady}
	}
	return rootID, plan, nil
}

func sortItems(items []*model.WorkItem, order model.PlanOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case model.OrderPriorityFirst:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
			return a.Type.Rank() < b.Type.Rank()
		case model.OrderComplexityFirst:
			return a.Complexity.Rank() < b.Complexity.Rank()
		default: // model.OrderDependency
			if a.Type.Rank() != b.Type.Rank() {
				return a.Type.Rank() < b.Type.Rank()
			}
			return a.Priority.Rank() < b.Priority.Rank()
		}
	})
}
