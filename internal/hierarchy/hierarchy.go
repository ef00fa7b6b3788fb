// Package hierarchy implements the HierarchyManager (C4): parent/child
// traversal, the initiative->epic->feature->story->task chain rule, and
// unweighted progress rollup.
package hierarchy

import (
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

// MaxDepth bounds recursive traversal per §4.4.
const MaxDepth = 10

// Manager owns tree operations over WorkItem parent/child relationships.
type Manager struct {
	store *store.Store
}

// New builds a Manager backed by s.
func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// CheckHierarchyRule enforces invariant 3.2(1): parent_id is empty iff
// type is initiative, and a non-initiative's type must sit directly below
// its parent's type in the chain.
func (m *Manager) CheckHierarchyRule(item *model.WorkItem) error {
	if item.Type == model.TypeInitiative {
		if item.ParentID != "" {
			return model.NewError(model.ErrHierarchyViolation, "initiative must not have a parent")
		}
		return nil
	}
	if item.ParentID == "" {
		return model.NewError(model.ErrHierarchyViolation, "non-initiative work item must have a parent")
	}
	parent, err := m.store.GetWorkItem(item.ParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return model.NewError(model.ErrHierarchyViolation, "parent "+item.ParentID+" does not exist")
	}
	if !item.Type.IsDirectChildOf(parent.Type) {
		return model.NewError(model.ErrHierarchyViolation,
			"type "+string(item.Type)+" must appear directly below parent type "+string(parent.Type))
	}
	return nil
}

// Children returns direct children of id, or (when recursive) every
// descendant found by depth-first expansion bounded by MaxDepth with
// cycle-safety via a visited set.
func (m *Manager) Children(id string, recursive bool) ([]*model.WorkItem, error) {
	direct, err := m.directChildren(id)
	if err != nil {
		return nil, err
	}
	if !recursive {
		return direct, nil
	}

	visited := map[string]bool{id: true}
	var out []*model.WorkItem
	var walk func(parentID string, depth int) error
	walk = func(parentID string, depth int) error {
		if depth > MaxDepth {
			return nil
		}
		children, err := m.directChildren(parentID)
		if err != nil {
			return err
		}
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			out = append(out, c)
			if err := walk(c.ID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id, 1); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) directChildren(parentID string) ([]*model.WorkItem, error) {
	return m.store.ListWorkItems(store.WorkItemFilter{ParentID: &parentID}, "created_at", true, 100000, 0)
}

// Ancestors walks parent_id upward until there is none, returning the
// chain root-first.
func (m *Manager) Ancestors(id string) ([]*model.WorkItem, error) {
	var chain []*model.WorkItem
	visited := map[string]bool{}
	current := id
	for i := 0; i < MaxDepth; i++ {
		w, err := m.store.GetWorkItem(current)
		if err != nil {
			return nil, err
		}
		if w == nil || w.ParentID == "" || visited[w.ParentID] {
			break
		}
		parent, err := m.store.GetWorkItem(w.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		visited[parent.ID] = true
		chain = append([]*model.WorkItem{parent}, chain...)
		current = parent.ID
	}
	return chain, nil
}

// Node is one entry in a Hierarchy tree, annotated with its depth and
// root-relative path.
type Node struct {
	Item     *model.WorkItem
	Depth    int
	Path     []string
	Children []*Node
}

// Hierarchy builds the nested tree rooted at root, respecting maxDepth.
func (m *Manager) Hierarchy(root string, maxDepth int) (*Node, error) {
	if maxDepth <= 0 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	w, err := m.store.GetWorkItem(root)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, model.NewError(model.ErrNotFound, "work item "+root+" not found")
	}

	visited := map[string]bool{root: true}
	var build func(item *model.WorkItem, depth int, path []string) (*Node, error)
	build = func(item *model.WorkItem, depth int, path []string) (*Node, error) {
		node := &Node{Item: item, Depth: depth, Path: path}
		if depth >= maxDepth {
			return node, nil
		}
		children, err := m.directChildren(item.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			childNode, err := build(c, depth+1, append(append([]string(nil), path...), c.Title))
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, childNode)
		}
		return node, nil
	}

	return build(w, 0, []string{w.Title})
}

// Progress returns id's own progress_percentage if it has no children,
// otherwise the unweighted mean of its children's Progress. This is a
// pure query; it never writes back to the Store.
func (m *Manager) Progress(id string) (float64, error) {
	w, err := m.store.GetWorkItem(id)
	if err != nil {
		return 0, err
	}
	if w == nil {
		return 0, model.NewError(model.ErrNotFound, "work item "+id+" not found")
	}

	children, err := m.directChildren(id)
	if err != nil {
		return 0, err
	}
	if len(children) == 0 {
		return w.ProgressPercentage, nil
	}

	total := 0.0
	for _, c := range children {
		p, err := m.Progress(c.ID)
		if err != nil {
			return 0, err
		}
		total += p
	}
	return total / float64(len(children)), nil
}
