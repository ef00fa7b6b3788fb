// Package orchestrator implements the Orchestrator (C6): it builds
// execution plans over a work-item tree, drives the per-session state
// machine, dispatches the next task to the calling agent, and handles
// cancellation and failure.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/eventbus"
	"github.com/jivedev/jivecore/internal/executor"
	"github.com/jivedev/jivecore/internal/hierarchy"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/resolver"
	"github.com/jivedev/jivecore/internal/store"
)

// Orchestrator owns transient ExecutionSession state; the Store remains the
// sole owner of durable WorkItem state.
type Orchestrator struct {
	store     *store.Store
	resolver  *resolver.Resolver
	hierarchy *hierarchy.Manager
	depEngine *depgraph.Engine
	driver    *executor.Driver // optional; nil disables DelegateChildren
	bus       *eventbus.Bus    // optional; nil is valid (no event fan-out)

	guidanceBudget GuidanceBudget

	mu       sync.Mutex
	sessions map[string]*sessionActor
}

// New builds an Orchestrator. driver and bus may both be nil: without a
// driver, DelegateChildren returns an error instead of running children in
// the background; without a bus, progress is still recorded on the session
// but not fanned out over the event bus.
func New(s *store.Store, r *resolver.Resolver, h *hierarchy.Manager, d *depgraph.Engine, driver *executor.Driver, bus *eventbus.Bus) *Orchestrator {
	return &Orchestrator{
		store:          s,
		resolver:       r,
		hierarchy:      h,
		depEngine:      d,
		driver:         driver,
		bus:            bus,
		guidanceBudget: DefaultGuidanceBudget(),
		sessions:       map[string]*sessionActor{},
	}
}

// TaskDispatch is the response shape for a next-task handoff, per §4.6.3.
type TaskDispatch struct {
	Task             *model.WorkItem
	Guidance         GuidanceBlock
	Position         string
	ProgressContract string
	ElapsedHuman     string
	SessionStatus    model.SessionStatus
}

const progressContractText = "Call status with task_completed=true when this task is done, " +
	"or with a blocker update if you are stuck; any other status call reports progress without advancing."

// Execute resolves rootIdentifier, builds the execution plan, creates a new
// ExecutionSession in state ready, and returns the first task dispatch.
//
// mode and order are distinct axes: order controls how this plan's own
// slots are sequenced for one-at-a-time dispatch (BuildPlan consults
// DependencyEngine.ExecutionOrder when order is dependency_order); mode is
// recorded on the session and consulted by ExecutorDriver when a dispatched
// task's own children are delegated for execution, where dependency_based
// schedules ready nodes in waves bounded by max_parallel.
func (o *Orchestrator) Execute(rootIdentifier string, mode model.SessionMode, order model.PlanOrder, timeoutMinutes int) (*model.ExecutionSession, *TaskDispatch, error) {
	rootID, plan, err := BuildPlan(o.store, o.resolver, o.hierarchy, o.depEngine, rootIdentifier, order)
	if err != nil {
		return nil, nil, err
	}
	if len(plan) == 0 {
		return nil, nil, model.NewError(model.ErrValidation, "execution plan is empty")
	}

	if timeoutMinutes <= 0 {
		timeoutMinutes = 60
	}

	session := &model.ExecutionSession{
		ExecutionID:    uuid.New().String(),
		RootID:         rootID,
		Plan:           plan,
		CurrentIndex:   0,
		Status:         model.SessionReady,
		Mode:           mode,
		StartedAt:      time.Now().UTC(),
		TimeoutMinutes: timeoutMinutes,
	}

	actor := newSessionActor(session)
	o.mu.Lock()
	o.sessions[session.ExecutionID] = actor
	o.mu.Unlock()

	dispatch, err := o.dispatchCurrent(actor)
	if err != nil {
		return nil, nil, err
	}
	return actor.snapshotPtr(), dispatch, nil
}

// snapshotPtr is a small helper so Execute/Status can return a fresh
// *model.ExecutionSession without exposing the actor's internals.
func (a *sessionActor) snapshotPtr() *model.ExecutionSession {
	s := a.snapshot()
	return &s
}

func (o *Orchestrator) dispatchCurrent(actor *sessionActor) (*TaskDispatch, error) {
	snap := actor.snapshot()
	taskID := snap.CurrentTaskID()
	if taskID == "" {
		return nil, nil
	}
	w, err := o.store.GetWorkItem(taskID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, model.NewError(model.ErrNotFound, "work item "+taskID+" not found")
	}
	return &TaskDispatch{
		Task:             w,
		Guidance:         buildGuidance(w, o.guidanceBudget),
		Position:         Position(snap.CurrentIndex, len(snap.Plan)),
		ProgressContract: progressContractText,
		ElapsedHuman:     humanize.Time(snap.StartedAt),
		SessionStatus:    snap.Status,
	}, nil
}

// Session returns a snapshot of a tracked session, or nil if unknown.
func (o *Orchestrator) Session(executionID string) *model.ExecutionSession {
	actor := o.actorFor(executionID)
	if actor == nil {
		return nil
	}
	return actor.snapshotPtr()
}

func (o *Orchestrator) actorFor(executionID string) *sessionActor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[executionID]
}

// Status advances or inspects a session per §4.6.2/§4.6.3. A blocker update
// transitions running->blocked; any other update while blocked transitions
// back to running; task_completed=true advances current_index.
func (o *Orchestrator) Status(executionID string, taskCompleted bool, kind model.ProgressKind, message string) (*model.ExecutionSession, *TaskDispatch, error) {
	actor := o.actorFor(executionID)
	if actor == nil {
		return nil, nil, model.NewError(model.ErrNotFound, "execution "+executionID+" not found")
	}

	var applyErr error
	actor.apply(func(st *model.ExecutionSession) {
		if st.Status == model.SessionCancelled || st.Status == model.SessionFailed || st.Status == model.SessionCompleted {
			applyErr = model.NewError(model.ErrConflict, "session "+executionID+" is already terminal")
			return
		}

		st.Updates = append(st.Updates, model.ProgressUpdate{
			Timestamp: time.Now().UTC(),
			Kind:      kind,
			TaskIndex: st.CurrentIndex,
			Message:   message,
		})

		switch {
		case kind == model.ProgressKindBlocker:
			st.Status = model.SessionBlocked
		case st.Status == model.SessionBlocked:
			st.Status = model.SessionRunning
		case st.Status == model.SessionReady:
			st.Status = model.SessionRunning
		}

		if taskCompleted {
			if st.CurrentIndex < len(st.Plan) {
				st.Plan[st.CurrentIndex].Status = model.SlotCompleted
			}
			st.CurrentIndex++
			if st.CurrentIndex >= len(st.Plan) {
				st.Status = model.SessionCompleted
			} else {
				st.Plan[st.CurrentIndex].Status = model.SlotRunning
			}
		}
	})
	if applyErr != nil {
		return nil, nil, applyErr
	}

	if o.bus != nil {
		_ = o.bus.PublishProgress(executionID, model.ProgressUpdate{
			Timestamp: time.Now().UTC(),
			Kind:      kind,
			Message:   message,
		})
	}

	snap := actor.snapshotPtr()
	if snap.Status == model.SessionCompleted {
		return snap, nil, nil
	}
	dispatch, err := o.dispatchCurrent(actor)
	if err != nil {
		return snap, nil, err
	}
	return snap, dispatch, nil
}

// Cancel terminates a session per §4.6.4. force proceeds regardless of
// whether a background ExecutorDriver task is still running. force and
// rollbackChanges are only recorded in the cancellation update's message;
// Cancel reverts no file writes and does not read AffectedPaths.
func (o *Orchestrator) Cancel(executionID, reason string, force, rollbackChanges bool) (*model.ExecutionSession, error) {
	actor := o.actorFor(executionID)
	if actor == nil {
		return nil, model.NewError(model.ErrNotFound, "execution "+executionID+" not found")
	}

	var applyErr error
	actor.apply(func(st *model.ExecutionSession) {
		if st.Status == model.SessionCompleted || st.Status == model.SessionCancelled {
			applyErr = model.NewError(model.ErrConflict, "session "+executionID+" cannot be cancelled from status "+string(st.Status))
			return
		}
		now := time.Now().UTC()
		st.Status = model.SessionCancelled
		st.CancelledAt = &now
		st.FailureReason = reason
		st.Updates = append(st.Updates, model.ProgressUpdate{
			Timestamp: now,
			Kind:      model.ProgressKindBlocker,
			TaskIndex: st.CurrentIndex,
			Message:   fmt.Sprintf("cancelled: %s (force=%v, rollback_changes=%v)", reason, force, rollbackChanges),
		})
	})
	if applyErr != nil {
		return nil, applyErr
	}

	if o.bus != nil {
		_ = o.bus.PublishCancel(executionID)
	}

	return actor.snapshotPtr(), nil
}

// Fail transitions a session to failed with the given reason, per §4.6.5
// ("an error from the Store is propagated to the caller; the session
// remains at its last valid state" up until the caller decides to fail it
// outright, e.g. after a timeout).
func (o *Orchestrator) Fail(executionID, reason string) (*model.ExecutionSession, error) {
	actor := o.actorFor(executionID)
	if actor == nil {
		return nil, model.NewError(model.ErrNotFound, "execution "+executionID+" not found")
	}
	actor.apply(func(st *model.ExecutionSession) {
		st.Status = model.SessionFailed
		st.FailureReason = reason
	})
	return actor.snapshotPtr(), nil
}

// CheckTimeout transitions a session to failed(timeout) if it has run past
// its TimeoutMinutes, per §5's timeout clause. Returns true if it did.
func (o *Orchestrator) CheckTimeout(executionID string) (bool, error) {
	actor := o.actorFor(executionID)
	if actor == nil {
		return false, model.NewError(model.ErrNotFound, "execution "+executionID+" not found")
	}
	var expired bool
	actor.apply(func(st *model.ExecutionSession) {
		if st.Status == model.SessionCompleted || st.Status == model.SessionCancelled || st.Status == model.SessionFailed {
			return
		}
		if time.Since(st.StartedAt) > time.Duration(st.TimeoutMinutes)*time.Minute {
			st.Status = model.SessionFailed
			st.FailureReason = "timeout"
			expired = true
		}
	})
	return expired, nil
}

// DelegateChildren runs workItemID's direct children to completion in the
// background via ExecutorDriver, translating session.Mode into an
// executor.Strategy and piping every ProgressFunc callback into the
// session's update log (and, if a bus is wired, onto
// session.<execution_id>.progress). It returns once the driver has been
// started; callers poll Status/Session for outcomes, per §4.7's
// fire-and-report delegation model.
func (o *Orchestrator) DelegateChildren(executionID, workItemID string, failFast bool) error {
	if o.driver == nil {
		return model.NewError(model.ErrValidation, "no ExecutorDriver configured")
	}
	actor := o.actorFor(executionID)
	if actor == nil {
		return model.NewError(model.ErrNotFound, "execution "+executionID+" not found")
	}

	children, err := o.hierarchy.Children(workItemID, false)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	childIDs := make([]string, len(children))
	for i, c := range children {
		childIDs[i] = c.ID
	}

	snap := actor.snapshot()
	strategy := executor.StrategyParallel
	switch snap.Mode {
	case model.ModeSequential:
		strategy = executor.StrategySequential
	case model.ModeDependencyBased:
		strategy = executor.StrategyDependencyBased
	}

	onProgress := func(u model.ProgressUpdate) {
		actor.apply(func(st *model.ExecutionSession) {
			st.Updates = append(st.Updates, u)
		})
		if o.bus != nil {
			_ = o.bus.PublishProgress(executionID, u)
		}
	}

	go func() {
		err := o.driver.Run(context.Background(), childIDs, strategy, failFast, onProgress)
		if err != nil {
			_, _ = o.Fail(executionID, err.Error())
		}
	}()
	return nil
}

// Shutdown stops every session actor's goroutine. Call when the process is
// shutting down.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, actor := range o.sessions {
		actor.stop()
	}
}
