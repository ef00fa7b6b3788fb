package executor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/embedding"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

type stubProvider struct{ dim int }

func (p *stubProvider) Embed(text string) ([]float32, error) { return make([]float32, p.dim), nil }
func (p *stubProvider) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}
func (p *stubProvider) Dimensions() int { return p.dim }

func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	svc := embedding.NewService(&stubProvider{dim: 4}, 4)
	s, err := store.Open(dbPath, svc, store.DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, func() { s.Close() }
}

func fastTiming(model.ItemType) time.Duration { return 10 * time.Millisecond }

func mustCreate(t *testing.T, s *store.Store, title string) *model.WorkItem {
	t.Helper()
	w := &model.WorkItem{Type: model.TypeTask, Title: title}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}
	return w
}

func TestRunSequentialCompletesAllChildren(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	eng := depgraph.New(s)
	d := New(s, eng, 3).WithTiming(fastTiming)

	a := mustCreate(t, s, "A")
	b := mustCreate(t, s, "B")

	var updates int
	err := d.Run(context.Background(), []string{a.ID, b.ID}, StrategySequential, true, func(model.ProgressUpdate) {
		updates++
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if updates != 2*progressSteps {
		t.Errorf("expected %d progress updates, got %d", 2*progressSteps, updates)
	}

	for _, id := range []string{a.ID, b.ID} {
		w, err := s.GetWorkItem(id)
		if err != nil {
			t.Fatalf("GetWorkItem failed: %v", err)
		}
		if w.Status != model.StatusDone {
			t.Errorf("expected %s done, got %s", id, w.Status)
		}
		if w.ProgressPercentage != 100 {
			t.Errorf("expected 100%% progress, got %v", w.ProgressPercentage)
		}
		if w.Metadata["completed_at"] == "" {
			t.Error("expected metadata.completed_at to be set")
		}
	}
	if d.InFlightCount() != 0 {
		t.Errorf("expected no in-flight children after completion, got %d", d.InFlightCount())
	}
}

func TestRunParallelRespectsMaxParallel(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	eng := depgraph.New(s)
	d := New(s, eng, 2).WithTiming(fastTiming)

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		w := mustCreate(t, s, "child")
		ids = append(ids, w.ID)
	}

	var mu sync.Mutex
	maxInFlight := 0
	onProgress := func(model.ProgressUpdate) {
		n := d.InFlightCount()
		mu.Lock()
		if n > maxInFlight {
			maxInFlight = n
		}
		mu.Unlock()
	}
	if err := d.Run(context.Background(), ids, StrategyParallel, false, onProgress); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if maxInFlight > 2 {
		t.Errorf("expected at most 2 children in flight, saw %d", maxInFlight)
	}

	for _, id := range ids {
		w, err := s.GetWorkItem(id)
		if err != nil {
			t.Fatalf("GetWorkItem failed: %v", err)
		}
		if w.Status != model.StatusDone {
			t.Errorf("expected %s done, got %s", id, w.Status)
		}
	}
}

func TestRunDependencyBasedOrdersByReadiness(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	eng := depgraph.New(s)
	d := New(s, eng, 3).WithTiming(fastTiming)

	a := mustCreate(t, s, "A")
	b := mustCreate(t, s, "B")
	if err := s.CreateDependency(&model.Dependency{SourceID: a.ID, TargetID: b.ID, Kind: model.DependencyDependsOn}); err != nil {
		t.Fatalf("CreateDependency failed: %v", err)
	}

	var completionOrder []string
	err := d.Run(context.Background(), []string{a.ID, b.ID}, StrategyDependencyBased, true, func(u model.ProgressUpdate) {
		if u.Kind == model.ProgressKindProgress {
			completionOrder = append(completionOrder, u.Details["work_item_id"])
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	bFirst := -1
	aFirst := -1
	for i, id := range completionOrder {
		if id == b.ID && bFirst == -1 {
			bFirst = i
		}
		if id == a.ID && aFirst == -1 {
			aFirst = i
		}
	}
	if bFirst == -1 || aFirst == -1 || bFirst >= aFirst {
		t.Errorf("expected B's progress events before A's (B has no dependency), order=%v", completionOrder)
	}
}

func TestRunSequentialFailFastStopsOnMissingItem(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	eng := depgraph.New(s)
	d := New(s, eng, 3).WithTiming(fastTiming)

	a := mustCreate(t, s, "A")
	missing := "00000000-0000-0000-0000-000000000000"
	b := mustCreate(t, s, "B")

	err := d.Run(context.Background(), []string{a.ID, missing, b.ID}, StrategySequential, true, nil)
	if err == nil {
		t.Fatal("expected an error for the missing work item")
	}
	if model.KindOf(err) != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", model.KindOf(err))
	}

	bItem, _ := s.GetWorkItem(b.ID)
	if bItem.Status == model.StatusDone {
		t.Error("expected fail_fast to stop before reaching B")
	}
}
