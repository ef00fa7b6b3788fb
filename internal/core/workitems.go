package core

import (
	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

// Status is the outcome enum every tool-call response carries at its top
// level, per §6.1.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusConflict Status = "conflict"
	StatusNotFound Status = "not_found"
)

func statusFor(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	switch model.KindOf(err) {
	case model.ErrNotFound:
		return StatusNotFound
	case model.ErrConflict:
		return StatusConflict
	default:
		return StatusError
	}
}

// CreateWorkItemRequest is create_work_item's argument shape.
type CreateWorkItemRequest struct {
	Type               model.ItemType
	Title              string
	Description        string
	Priority           model.Priority
	Complexity         model.Complexity
	ParentID           string
	AcceptanceCriteria []string
	Tags               []string
	Metadata           map[string]string
	Assignee           string
}

// WorkItemResponse wraps a single WorkItem result.
type WorkItemResponse struct {
	Status   Status
	WorkItem *model.WorkItem
	Error    string
}

// CreateWorkItem inserts a WorkItem, enforcing the hierarchy chain rule
// before handing off to the Store.
func (c *Core) CreateWorkItem(req CreateWorkItemRequest) WorkItemResponse {
	w := &model.WorkItem{
		Type:               req.Type,
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		Complexity:         req.Complexity,
		ParentID:           req.ParentID,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Tags:               req.Tags,
		Metadata:           req.Metadata,
		Assignee:           req.Assignee,
	}
	if err := c.Hierarchy.CheckHierarchyRule(w); err != nil {
		return WorkItemResponse{Status: statusFor(err), Error: err.Error()}
	}
	if err := c.Store.CreateWorkItem(w); err != nil {
		return WorkItemResponse{Status: statusFor(err), Error: err.Error()}
	}
	return WorkItemResponse{Status: StatusSuccess, WorkItem: w}
}

// GetWorkItem fetches a work item by flexible identifier (UUID, exact
// title, or keyword match) via the Resolver.
func (c *Core) GetWorkItem(identifier string) WorkItemResponse {
	id, err := c.Resolver.Resolve(identifier)
	if err != nil {
		return WorkItemResponse{Status: statusFor(err), Error: err.Error()}
	}
	if id == "" {
		return WorkItemResponse{Status: StatusNotFound, Error: "no work item matches " + identifier}
	}
	w, err := c.Store.GetWorkItem(id)
	if err != nil {
		return WorkItemResponse{Status: statusFor(err), Error: err.Error()}
	}
	if w == nil {
		return WorkItemResponse{Status: StatusNotFound, Error: "work item " + id + " not found"}
	}
	return WorkItemResponse{Status: StatusSuccess, WorkItem: w}
}

// UpdateWorkItem applies a partial update to the work item resolved from
// identifier.
func (c *Core) UpdateWorkItem(identifier string, updates store.WorkItemUpdate) WorkItemResponse {
	id, err := c.Resolver.Resolve(identifier)
	if err != nil {
		return WorkItemResponse{Status: statusFor(err), Error: err.Error()}
	}
	if id == "" {
		return WorkItemResponse{Status: StatusNotFound, Error: "no work item matches " + identifier}
	}
	w, err := c.Store.UpdateWorkItem(id, updates)
	if err != nil {
		return WorkItemResponse{Status: statusFor(err), Error: err.Error()}
	}
	return WorkItemResponse{Status: StatusSuccess, WorkItem: w}
}

// ListWorkItemsRequest is list_work_items's argument shape.
type ListWorkItemsRequest struct {
	Filter     store.WorkItemFilter
	SortBy     string
	Ascending  bool
	Limit      int
	Offset     int
}

// WorkItemListResponse wraps a paginated work-item page.
type WorkItemListResponse struct {
	Status    Status
	WorkItems []*model.WorkItem
	Error     string
}

// ListWorkItems filters and paginates.
func (c *Core) ListWorkItems(req ListWorkItemsRequest) WorkItemListResponse {
	items, err := c.Store.ListWorkItems(req.Filter, req.SortBy, req.Ascending, req.Limit, req.Offset)
	if err != nil {
		return WorkItemListResponse{Status: statusFor(err), Error: err.Error()}
	}
	return WorkItemListResponse{Status: StatusSuccess, WorkItems: items}
}

// SearchWorkItemsRequest is search_work_items's argument shape.
type SearchWorkItemsRequest struct {
	Query  string
	Kind   store.SearchKind
	Limit  int
	Filter store.WorkItemFilter
}

// SearchResponse wraps scored search results.
type SearchResponse struct {
	Status  Status
	Results []store.ScoredWorkItem
	Error   string
}

// SearchWorkItems runs a vector/keyword/hybrid search.
func (c *Core) SearchWorkItems(req SearchWorkItemsRequest) SearchResponse {
	results, err := c.Store.SearchWorkItems(req.Query, req.Kind, req.Limit, req.Filter)
	if err != nil {
		return SearchResponse{Status: statusFor(err), Error: err.Error()}
	}
	return SearchResponse{Status: StatusSuccess, Results: results}
}

// ChildrenResponse wraps a tree-descent result.
type ChildrenResponse struct {
	Status   Status
	Children []*model.WorkItem
	Error    string
}

// GetWorkItemChildren descends the tree from identifier, optionally
// recursively.
func (c *Core) GetWorkItemChildren(identifier string, recursive bool) ChildrenResponse {
	id, err := c.Resolver.Resolve(identifier)
	if err != nil {
		return ChildrenResponse{Status: statusFor(err), Error: err.Error()}
	}
	if id == "" {
		return ChildrenResponse{Status: StatusNotFound, Error: "no work item matches " + identifier}
	}
	children, err := c.Hierarchy.Children(id, recursive)
	if err != nil {
		return ChildrenResponse{Status: statusFor(err), Error: err.Error()}
	}
	return ChildrenResponse{Status: StatusSuccess, Children: children}
}

// DependenciesResponse wraps get_work_item_dependencies's result.
type DependenciesResponse struct {
	Status           Status
	DependencyIDs    []string
	Error            string
}

// GetWorkItemDependencies returns the ids identifier must wait for.
func (c *Core) GetWorkItemDependencies(identifier string, transitive, onlyBlocking bool) DependenciesResponse {
	id, err := c.Resolver.Resolve(identifier)
	if err != nil {
		return DependenciesResponse{Status: statusFor(err), Error: err.Error()}
	}
	if id == "" {
		return DependenciesResponse{Status: StatusNotFound, Error: "no work item matches " + identifier}
	}
	deps, err := c.Dependencies.DependenciesOf(id, transitive, onlyBlocking)
	if err != nil {
		return DependenciesResponse{Status: statusFor(err), Error: err.Error()}
	}
	return DependenciesResponse{Status: StatusSuccess, DependencyIDs: deps}
}

// ValidateDependenciesRequest is validate_dependencies's argument shape. An
// empty WorkItemIDs means "validate over every work item in the store".
type ValidateDependenciesRequest struct {
	WorkItemIDs  []string
	CheckMissing bool
	SuggestFixes bool
}

// ValidationResponse wraps a graph validation report.
type ValidationResponse struct {
	Status Status
	Report *depgraph.ValidationResult
	Error  string
}

// ValidateDependencies runs a pure graph check over a set of work items
// (cycles always checked; missing-reference and suggested-fix checks are
// opt-in per the request).
func (c *Core) ValidateDependencies(req ValidateDependenciesRequest) ValidationResponse {
	ids := req.WorkItemIDs
	if len(ids) == 0 {
		items, err := c.Store.ListWorkItems(store.WorkItemFilter{}, "created_at", true, 100000, 0)
		if err != nil {
			return ValidationResponse{Status: statusFor(err), Error: err.Error()}
		}
		for _, w := range items {
			ids = append(ids, w.ID)
		}
	}
	report, err := c.Dependencies.Validate(ids, depgraph.ValidateOptions{
		CheckCircular: true,
		CheckMissing:  req.CheckMissing,
		SuggestFixes:  req.SuggestFixes,
	})
	if err != nil {
		return ValidationResponse{Status: statusFor(err), Error: err.Error()}
	}
	return ValidationResponse{Status: StatusSuccess, Report: report}
}
