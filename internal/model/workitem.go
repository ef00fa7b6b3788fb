// Package model holds the data shapes shared by every core component:
// WorkItem and its enumerations, dependency edges, execution sessions and
// sync records. Components reach each other's entities only by ID lookup
// through the Store, never by holding pointers into one another's memory.
package model

import (
	"strings"
	"time"
)

// ItemType is the work-item hierarchy level. A non-initiative item's parent
// must be exactly one level up this chain.
type ItemType string

const (
	TypeInitiative ItemType = "initiative"
	TypeEpic       ItemType = "epic"
	TypeFeature    ItemType = "feature"
	TypeStory      ItemType = "story"
	TypeTask       ItemType = "task"
)

// typeRank gives the ordering used by dependency/priority sorts (initiative
// first) and by HierarchyManager's parent/child chain check.
var typeRank = map[ItemType]int{
	TypeInitiative: 0,
	TypeEpic:       1,
	TypeFeature:    2,
	TypeStory:      3,
	TypeTask:       4,
}

// Rank returns the type's position in the initiative->task chain, or -1 if
// the type is not recognized.
func (t ItemType) Rank() int {
	r, ok := typeRank[t]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether t is one of the five recognized types.
func (t ItemType) Valid() bool {
	_, ok := typeRank[t]
	return ok
}

// IsDirectChildOf reports whether t belongs directly below parent in the
// initiative -> epic -> feature -> story -> task chain.
func (t ItemType) IsDirectChildOf(parent ItemType) bool {
	if !t.Valid() || !parent.Valid() {
		return false
	}
	return t.Rank() == parent.Rank()+1
}

// Status is the work-item lifecycle state. The "new" vocabulary is
// canonical; the "older" vocabulary is accepted as an alias and normalized
// on write (see NormalizeStatus).
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// statusAliases maps the older vocabulary onto the canonical one.
var statusAliases = map[Status]Status{
	"not_started": StatusBacklog,
	"todo":        StatusReady,
	"completed":   StatusDone,
	"failed":      StatusCancelled,
}

// NormalizeStatus resolves s to its canonical form, reporting whether s was
// expressed in the older alias vocabulary.
func NormalizeStatus(s Status) (canonical Status, wasAlias bool) {
	if canon, ok := statusAliases[s]; ok {
		return canon, true
	}
	return s, false
}

// ValidStatus reports whether s is recognized in either vocabulary.
func ValidStatus(s Status) bool {
	if _, ok := statusAliases[s]; ok {
		return true
	}
	switch s {
	case StatusBacklog, StatusReady, StatusInProgress, StatusBlocked, StatusReview, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// IsTerminalDone reports whether s (in either vocabulary) means the item is
// complete, per invariant 3.2(2).
func IsTerminalDone(s Status) bool {
	c, _ := NormalizeStatus(s)
	return c == StatusDone
}

// IsBacklog reports whether s (in either vocabulary) means not-yet-started.
func IsBacklog(s Status) bool {
	c, _ := NormalizeStatus(s)
	return c == StatusBacklog
}

// Priority is the work-item urgency level, ordered critical < high < medium
// < low for ranking purposes.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank returns p's ordering position, or len(priorityRank) for an unknown
// value so unrecognized priorities sort last rather than erroring.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Complexity is an optional sizing hint.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

var complexityRank = map[Complexity]int{
	ComplexitySimple:   0,
	ComplexityModerate: 1,
	ComplexityComplex:  2,
}

// Rank returns c's ordering position, or len(complexityRank) when empty or
// unrecognized so items without a complexity sort last.
func (c Complexity) Rank() int {
	if r, ok := complexityRank[c]; ok {
		return r
	}
	return len(complexityRank)
}

// WorkItem is the primary entity persisted by the Store.
type WorkItem struct {
	ID                 string
	Type               ItemType
	Title              string
	Description        string
	Status             Status
	Priority           Priority
	Complexity         Complexity
	ParentID           string // empty means no parent
	Dependencies       []string
	AcceptanceCriteria []string
	ProgressPercentage float64
	Tags               []string
	Metadata           map[string]string
	Assignee           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Embedding          []float32
}

// EmbeddingText returns the designated text fields used to derive the
// work item's embedding, per Store §4.1: title + " " + description.
func (w *WorkItem) EmbeddingText() string {
	return strings.TrimSpace(w.Title + " " + w.Description)
}

// DependencyKind is the edge label on a Dependency record.
type DependencyKind string

const (
	DependencyBlocks    DependencyKind = "blocks"
	DependencyDependsOn DependencyKind = "depends_on"
	DependencyRelatesTo DependencyKind = "relates_to"
)

// Dependency is a directed relationship between two work items.
type Dependency struct {
	ID       string
	SourceID string
	TargetID string
	Kind     DependencyKind
}
