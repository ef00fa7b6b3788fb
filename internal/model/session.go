package model

import "time"

// SessionMode selects how ExecutorDriver schedules a session's children.
type SessionMode string

const (
	ModeSequential      SessionMode = "sequential"
	ModeParallel        SessionMode = "parallel"
	ModeDependencyBased SessionMode = "dependency_based"
)

// PlanOrder selects how the Orchestrator orders the initial execution plan.
type PlanOrder string

const (
	OrderDependency      PlanOrder = "dependency_order"
	OrderPriorityFirst   PlanOrder = "priority_high_first"
	OrderComplexityFirst PlanOrder = "complexity_simple_first"
)

// SessionStatus is the ExecutionSession state machine's state.
type SessionStatus string

const (
	SessionReady     SessionStatus = "ready"
	SessionRunning   SessionStatus = "running"
	SessionBlocked   SessionStatus = "blocked"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionFailed    SessionStatus = "failed"
)

// TaskSlotStatus is the per-slot status within a session's plan.
type TaskSlotStatus string

const (
	SlotReady      TaskSlotStatus = "ready"
	SlotRunning    TaskSlotStatus = "running"
	SlotCompleted  TaskSlotStatus = "completed"
	SlotFailed     TaskSlotStatus = "failed"
	SlotCancelled  TaskSlotStatus = "cancelled"
)

// TaskSlot is one entry in an ExecutionSession's ordered plan.
type TaskSlot struct {
	ID     string
	Order  int
	Status TaskSlotStatus
}

// ProgressKind labels a ProgressUpdate's intent.
type ProgressKind string

const (
	ProgressKindProgress   ProgressKind = "progress"
	ProgressKindMilestone  ProgressKind = "milestone"
	ProgressKindBlocker    ProgressKind = "blocker"
	ProgressKindCompletion ProgressKind = "completion"
)

// ProgressUpdate is one append-only entry in a session's update log.
type ProgressUpdate struct {
	Timestamp time.Time
	Kind      ProgressKind
	TaskIndex int
	Message   string
	Details   map[string]string
}

// ExecutionSession tracks one in-flight orchestrated execution. It lives in
// process memory only; the Orchestrator is its sole owner and all
// read-modify-write traffic against a given session is serialized through
// that session's single update goroutine.
type ExecutionSession struct {
	ExecutionID    string
	RootID         string
	Plan           []TaskSlot
	CurrentIndex   int
	Status         SessionStatus
	Mode           SessionMode
	StartedAt      time.Time
	CancelledAt    *time.Time
	TimeoutMinutes int
	FailureReason  string
	Updates        []ProgressUpdate
	// AffectedPaths is a list of file paths carried on the session. No code
	// in this module appends to it, and Cancel does not revert these paths.
	AffectedPaths []string
}

// CurrentTaskID returns the work-item ID at CurrentIndex, or "" if the plan
// is exhausted.
func (s *ExecutionSession) CurrentTaskID() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Plan) {
		return ""
	}
	return s.Plan[s.CurrentIndex].ID
}

// SyncRecord is the reconciliation state between an on-disk file and a
// stored work item. It carries both the path and the work-item ID, but
// SyncEngine indexes its records by path only; there is no lookup by
// work-item ID.
type SyncRecord struct {
	Path       string
	WorkItemID string
	Checksum   string
	LastSynced time.Time
}
