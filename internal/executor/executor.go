// Package executor implements the ExecutorDriver (C7): for work items
// delegated back to the system, it drives (or simulates) their children's
// completion in the background and reports progress into the owning
// session.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

// Strategy selects how a set of child work items is scheduled.
type Strategy string

const (
	StrategySequential      Strategy = "sequential"
	StrategyParallel        Strategy = "parallel"
	StrategyDependencyBased Strategy = "dependency_based"
)

// executionTimeMap gives simulated per-type work durations, carried from
// the original autonomous executor's demo/test mode timing table.
var executionTimeMap = map[model.ItemType]time.Duration{
	model.TypeTask:       5 * time.Second,
	model.TypeStory:      15 * time.Second,
	model.TypeFeature:    30 * time.Second,
	model.TypeEpic:       60 * time.Second,
	model.TypeInitiative: 120 * time.Second,
}

const defaultExecutionTime = 10 * time.Second
const progressSteps = 10

func executionTimeFor(t model.ItemType) time.Duration {
	if d, ok := executionTimeMap[t]; ok {
		return d
	}
	return defaultExecutionTime
}

// ProgressFunc receives a progress update as a child work item advances.
type ProgressFunc func(model.ProgressUpdate)

// inFlight tracks one currently-executing child.
type inFlight struct {
	id        string
	startedAt time.Time
}

// Driver runs child work items in the background, bounded by maxParallel
// concurrent in-flight children. Grounded on the teacher's Spawner: a
// map[string]*Agent protected by sync.RWMutex plus a sync.WaitGroup,
// generalized from "one goroutine per spawned CLI process" to "one
// goroutine per in-flight child work item".
type Driver struct {
	store       *store.Store
	depEngine   *depgraph.Engine
	maxParallel int
	timingFunc  func(model.ItemType) time.Duration

	mu       sync.RWMutex
	children map[string]*inFlight
}

// New builds a Driver. maxParallel defaults to 3 when <= 0.
func New(s *store.Store, depEngine *depgraph.Engine, maxParallel int) *Driver {
	if maxParallel <= 0 {
		maxParallel = 3
	}
	return &Driver{
		store:       s,
		depEngine:   depEngine,
		maxParallel: maxParallel,
		timingFunc:  executionTimeFor,
		children:    map[string]*inFlight{},
	}
}

// WithTiming overrides the per-type simulated execution duration function;
// tests use this to shrink the default 5s-120s timings.
func (d *Driver) WithTiming(f func(model.ItemType) time.Duration) *Driver {
	d.timingFunc = f
	return d
}

// InFlightCount returns the number of children currently executing.
func (d *Driver) InFlightCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.children)
}

// Run drives childIDs to completion using strategy, invoking onProgress for
// every step along the way. It blocks until every child finishes, one fails
// under fail_fast, or ctx is cancelled.
func (d *Driver) Run(ctx context.Context, childIDs []string, strategy Strategy, failFast bool, onProgress ProgressFunc) error {
	switch strategy {
	case StrategySequential:
		return d.runSequential(ctx, childIDs, failFast, onProgress)
	case StrategyDependencyBased:
		return d.runDependencyBased(ctx, childIDs, failFast, onProgress)
	default:
		return d.runParallel(ctx, childIDs, failFast, onProgress)
	}
}

func (d *Driver) runSequential(ctx context.Context, childIDs []string, failFast bool, onProgress ProgressFunc) error {
	var firstErr error
	for _, id := range childIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.executeOne(ctx, id, onProgress); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if failFast {
				return firstErr
			}
		}
	}
	return firstErr
}

func (d *Driver) runParallel(ctx context.Context, childIDs []string, failFast bool, onProgress ProgressFunc) error {
	var firstErr error
	for start := 0; start < len(childIDs); start += d.maxParallel {
		end := start + d.maxParallel
		if end > len(childIDs) {
			end = len(childIDs)
		}
		batch := childIDs[start:end]

		batchCtx, cancelBatch := context.WithCancel(ctx)
		var wg sync.WaitGroup
		errs := make([]error, len(batch))
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				errs[i] = d.executeOne(batchCtx, id, onProgress)
				if errs[i] != nil && failFast {
					cancelBatch()
				}
			}(i, id)
		}
		wg.Wait()
		cancelBatch()

		for _, err := range errs {
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil && failFast {
			return firstErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return firstErr
}

func (d *Driver) runDependencyBased(ctx context.Context, childIDs []string, failFast bool, onProgress ProgressFunc) error {
	pending := make(map[string]bool, len(childIDs))
	for _, id := range childIDs {
		pending[id] = true
	}
	done := map[string]bool{}
	var firstErr error

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ready []string
		for id := range pending {
			blocking, err := d.depEngine.DependenciesOf(id, false, true)
			if err != nil {
				return err
			}
			waiting := false
			for _, dep := range blocking {
				if pending[dep] {
					waiting = true
					break
				}
			}
			if !waiting {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Remaining items depend on something outside the set or on each
			// other in a way DependencyEngine.Validate would flag as a cycle;
			// dispatch them in input order rather than deadlocking.
			for _, id := range childIDs {
				if pending[id] {
					ready = append(ready, id)
				}
			}
		}
		if len(ready) > d.maxParallel {
			ready = ready[:d.maxParallel]
		}

		batchCtx, cancelBatch := context.WithCancel(ctx)
		var wg sync.WaitGroup
		errs := make([]error, len(ready))
		for i, id := range ready {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				errs[i] = d.executeOne(batchCtx, id, onProgress)
			}(i, id)
		}
		wg.Wait()
		cancelBatch()

		for i, id := range ready {
			delete(pending, id)
			done[id] = true
			if errs[i] != nil && firstErr == nil {
				firstErr = errs[i]
			}
		}
		if firstErr != nil && failFast {
			return firstErr
		}
	}
	return firstErr
}

// executeOne simulates one child work item's execution: a progress-reporting
// loop sized by the item's type, followed by a store write marking it
// complete. The driver never writes fields other than status, progress, and
// metadata.completed_at.
func (d *Driver) executeOne(ctx context.Context, id string, onProgress ProgressFunc) error {
	w, err := d.store.GetWorkItem(id)
	if err != nil {
		return err
	}
	if w == nil {
		return model.NewError(model.ErrNotFound, "work item "+id+" not found")
	}

	d.mu.Lock()
	d.children[id] = &inFlight{id: id, startedAt: time.Now()}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.children, id)
		d.mu.Unlock()
	}()

	total := d.timingFunc(w.Type)
	step := total / progressSteps

	for i := 1; i <= progressSteps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
		if onProgress != nil {
			onProgress(model.ProgressUpdate{
				Timestamp: time.Now().UTC(),
				Kind:      model.ProgressKindProgress,
				Message:   fmt.Sprintf("%s: %d%% complete", w.Title, i*10),
				Details:   map[string]string{"work_item_id": id},
			})
		}
	}

	return d.markComplete(id)
}

func (d *Driver) markComplete(id string) error {
	w, err := d.store.GetWorkItem(id)
	if err != nil {
		return err
	}
	if w == nil {
		return model.NewError(model.ErrNotFound, "work item "+id+" not found")
	}

	metadata := map[string]string{}
	for k, v := range w.Metadata {
		metadata[k] = v
	}
	metadata["completed_at"] = time.Now().UTC().Format(time.RFC3339)

	done := model.StatusDone
	progress := 100.0
	_, err = d.store.UpdateWorkItem(id, store.WorkItemUpdate{
		Status:             &done,
		ProgressPercentage: &progress,
		Metadata:           metadata,
	})
	return err
}
