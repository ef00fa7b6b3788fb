// Package depgraph implements the DependencyEngine (C3): graph
// construction, cycle detection, topological execution ordering and
// validation over a set of WorkItem IDs. No third-party graph library is
// used here; see the grounding ledger for why.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

// DefaultCycleEnumerationCap bounds simple-cycle enumeration so a
// pathological graph cannot make validation run forever.
const DefaultCycleEnumerationCap = 10000

// Engine owns the interpretation of dependency edges as a scheduling DAG.
type Engine struct {
	store              *store.Store
	cycleEnumerationCap int
}

// New builds an Engine backed by s, using the default cycle enumeration cap.
func New(s *store.Store) *Engine {
	return &Engine{store: s, cycleEnumerationCap: DefaultCycleEnumerationCap}
}

// WithCycleEnumerationCap overrides the default simple-cycle enumeration
// cap (useful in tests).
func (e *Engine) WithCycleEnumerationCap(cap int) *Engine {
	e.cycleEnumerationCap = cap
	return e
}

// graph is the adjacency representation built from a WorkItem ID set: an
// edge A->B means "A must wait for B".
type graph struct {
	nodes []string
	edges map[string][]string // source -> targets ("must wait for")
	in    map[string][]string // target -> sources (reverse of edges)
}

// buildGraph constructs the scheduling DAG for the set S per §4.3:
// depends_on(A->B) adds A->B; blocks(A->B) adds B->A; relates_to adds no
// edge.
func (e *Engine) buildGraph(ids []string) (*graph, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	deps, err := e.store.DependenciesFor(ids)
	if err != nil {
		return nil, err
	}

	g := &graph{nodes: append([]string(nil), ids...), edges: map[string][]string{}, in: map[string][]string{}}
	for _, id := range ids {
		g.edges[id] = nil
		g.in[id] = nil
	}

	addEdge := func(from, to string) {
		g.edges[from] = append(g.edges[from], to)
		g.in[to] = append(g.in[to], from)
	}

	for _, d := range deps {
		if !set[d.SourceID] || !set[d.TargetID] {
			continue
		}
		switch d.Kind {
		case model.DependencyDependsOn:
			addEdge(d.SourceID, d.TargetID)
		case model.DependencyBlocks:
			addEdge(d.TargetID, d.SourceID)
		case model.DependencyRelatesTo:
			// informational only, no scheduling edge
		}
	}
	return g, nil
}

// DependenciesOf returns the ids id must wait for (per §4.3's edge
// semantics: depends_on(A->B) means A waits for B; blocks(A->B) means B
// waits for A), optionally extended transitively and optionally filtered to
// dependencies that are not yet done. It reads the dependencies table
// directly rather than WorkItem.Dependencies, since CreateDependency writes
// edges there and the two are not kept in sync.
func (e *Engine) DependenciesOf(id string, transitive, onlyBlocking bool) ([]string, error) {
	w, err := e.store.GetWorkItem(id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, model.NewError(model.ErrNotFound, "work item "+id+" not found")
	}

	visited := map[string]bool{}
	var out []string

	var visit func(itemID string) error
	visit = func(itemID string) error {
		edges, err := e.store.DependenciesFor([]string{itemID})
		if err != nil {
			return err
		}
		for _, d := range edges {
			var depID string
			switch {
			case d.Kind == model.DependencyDependsOn && d.SourceID == itemID:
				depID = d.TargetID
			case d.Kind == model.DependencyBlocks && d.TargetID == itemID:
				depID = d.SourceID
			default:
				continue
			}
			if visited[depID] {
				continue
			}
			visited[depID] = true

			include := true
			if onlyBlocking {
				dep, err := e.store.GetWorkItem(depID)
				if err != nil {
					return err
				}
				if dep == nil || isDoneLike(dep.Status) {
					include = false
				}
			}
			if include {
				out = append(out, depID)
			}
			if transitive {
				if err := visit(depID); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := visit(id); err != nil {
		return nil, err
	}
	return out, nil
}

func isDoneLike(s model.Status) bool {
	canon, _ := model.NormalizeStatus(s)
	return canon == model.StatusDone
}

// ExecutionOrder computes a stable topological sort over S using Kahn's
// algorithm: at each step the smallest-priority-rank node whose
// dependencies (outgoing edges) are all already scheduled is chosen, ties
// broken by type rank then id, so a dependency precedes its dependents. If the graph has a cycle,
// the input order is returned unchanged (the caller should consult
// Validate to learn why).
func (e *Engine) ExecutionOrder(ids []string) ([]string, bool, error) {
	g, err := e.buildGraph(ids)
	if err != nil {
		return nil, false, err
	}

	items := make(map[string]*model.WorkItem, len(ids))
	for _, id := range ids {
		w, err := e.store.GetWorkItem(id)
		if err != nil {
			return nil, false, err
		}
		items[id] = w
	}

	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = len(g.edges[id])
	}

	remaining := make(map[string]bool, len(ids))
	for _, id := range ids {
		remaining[id] = true
	}

	var order []string
	for len(remaining) > 0 {
		var ready []string
		for id := range remaining {
			if inDegree[id] == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Cycle: no node is ready to schedule next.
			return append([]string(nil), ids...), false, nil
		}

		sort.Slice(ready, func(i, j int) bool {
			a, b := ready[i], ready[j]
			pa, pb := priorityRank(items[a]), priorityRank(items[b])
			if pa != pb {
				return pa < pb
			}
			ta, tb := typeRank(items[a]), typeRank(items[b])
			if ta != tb {
				return ta < tb
			}
			return a < b
		})

		next := ready[0]
		order = append(order, next)
		delete(remaining, next)
		for _, waiter := range g.in[next] {
			if remaining[waiter] {
				inDegree[waiter]--
			}
		}
	}

	return order, true, nil
}

// ValidateOptions selects which checks Validate performs; each defaults to
// off so callers only pay for what they ask for.
type ValidateOptions struct {
	CheckCircular bool
	CheckMissing  bool
	SuggestFixes  bool
}

// GraphStats summarizes S's scheduling graph.
type GraphStats struct {
	NodeCount int
	EdgeCount int
	IsDAG     bool
	Density   float64
}

// ValidationResult is the pure, read-only report returned by Validate.
type ValidationResult struct {
	IsValid                   bool
	Cycles                    [][]string
	MissingReferences         []string
	Orphans                   []string
	SuggestedFixes            []string
	CycleEnumerationTruncated bool
	Stats                     GraphStats
}

// Validate checks S's scheduling graph per §4.3: CheckCircular enumerates
// every simple cycle, CheckMissing flags dependency edges whose endpoint
// falls outside S along with any node whose ParentID refers outside S, and
// SuggestFixes proposes removing the C[-1]->C[0] edge for each cycle C. It
// never mutates state.
func (e *Engine) Validate(ids []string, opts ValidateOptions) (*ValidationResult, error) {
	g, err := e.buildGraph(ids)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	edgeCount := 0
	for _, targets := range g.edges {
		edgeCount += len(targets)
	}
	nodeCount := len(g.nodes)
	density := 0.0
	if nodeCount > 1 {
		density = float64(edgeCount) / float64(nodeCount*(nodeCount-1))
	}

	result := &ValidationResult{
		IsValid: true,
		Stats:   GraphStats{NodeCount: nodeCount, EdgeCount: edgeCount},
	}

	var cycles [][]string
	if opts.CheckCircular || opts.SuggestFixes {
		cycles = e.enumerateCycles(g, ids, &result.CycleEnumerationTruncated)
	}
	result.Stats.IsDAG = len(cycles) == 0
	if opts.CheckCircular {
		result.Cycles = cycles
		if len(cycles) > 0 {
			result.IsValid = false
		}
	}

	if opts.SuggestFixes {
		fixes := make([]string, 0, len(cycles))
		for _, c := range cycles {
			fixes = append(fixes, fmt.Sprintf("remove edge %s -> %s", c[len(c)-1], c[0]))
		}
		result.SuggestedFixes = fixes
	}

	if opts.CheckMissing {
		deps, err := e.store.DependenciesFor(ids)
		if err != nil {
			return nil, err
		}
		missing := map[string]bool{}
		for _, d := range deps {
			if !set[d.SourceID] {
				missing[d.SourceID] = true
			}
			if !set[d.TargetID] {
				missing[d.TargetID] = true
			}
		}
		for ref := range missing {
			result.MissingReferences = append(result.MissingReferences, ref)
		}
		if len(result.MissingReferences) > 0 {
			result.IsValid = false
		}

		var orphans []string
		for _, id := range ids {
			w, err := e.store.GetWorkItem(id)
			if err != nil {
				return nil, err
			}
			if w != nil && w.ParentID != "" && !set[w.ParentID] {
				orphans = append(orphans, id)
			}
		}
		result.Orphans = orphans
	}

	return result, nil
}

// enumerateCycles enumerates every simple cycle in g, capped at
// e.cycleEnumerationCap. Enumeration only extends a path to nodes lexically
// >= its start node, the standard trick for visiting each simple cycle
// exactly once without a global seen-set.
func (e *Engine) enumerateCycles(g *graph, ids []string, truncated *bool) [][]string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var cycles [][]string
	onPath := map[string]bool{}
	var path []string

	var dfs func(start, node string) bool
	dfs = func(start, node string) bool {
		for _, next := range g.edges[node] {
			if next == start {
				if len(cycles) >= e.cycleEnumerationCap {
					*truncated = true
					return false
				}
				cycles = append(cycles, append([]string(nil), path...))
				continue
			}
			if next < start || onPath[next] {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			cont := dfs(start, next)
			path = path[:len(path)-1]
			onPath[next] = false
			if !cont {
				return false
			}
		}
		return true
	}

	for _, start := range sorted {
		path = []string{start}
		onPath[start] = true
		cont := dfs(start, start)
		onPath[start] = false
		if !cont {
			break
		}
	}
	return cycles
}

func priorityRank(w *model.WorkItem) int {
	if w == nil {
		return 99
	}
	return w.Priority.Rank()
}

func typeRank(w *model.WorkItem) int {
	if w == nil {
		return 99
	}
	r := w.Type.Rank()
	if r < 0 {
		return 99
	}
	return r
}
