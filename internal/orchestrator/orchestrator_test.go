package orchestrator

import (
	"path/filepath"
	"testing"

	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/embedding"
	"github.com/jivedev/jivecore/internal/hierarchy"
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/resolver"
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

func setupTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	svc := embedding.NewService(&stubProvider{dim: 4}, 4)
	s, err := store.Open(dbPath, svc, store.DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	r := resolver.New(s)
	h := hierarchy.New(s)
	d := depgraph.New(s)
	o := New(s, r, h, d, nil, nil)
	return o, s, func() { o.Shutdown(); s.Close() }
}

func mustCreate(t *testing.T, s *store.Store, typ model.ItemType, title, parentID string) *model.WorkItem {
	t.Helper()
	w := &model.WorkItem{Type: typ, Title: title, ParentID: parentID}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}
	return w
}

func TestExecuteReturnsFirstTask(t *testing.T) {
	o, s, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	root := mustCreate(t, s, model.TypeInitiative, "Root", "")
	mustCreate(t, s, model.TypeEpic, "Epic", root.ID)

	session, dispatch, err := o.Execute(root.ID, model.ModeSequential, model.OrderDependency, 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if session.Status != model.SessionReady {
		t.Errorf("expected initial status ready, got %s", session.Status)
	}
	if dispatch == nil || dispatch.Task.ID != root.ID {
		t.Fatalf("expected first dispatch to be root (type rank ascending), got %+v", dispatch)
	}
	if dispatch.Position != "1 of 2" {
		t.Errorf("expected position '1 of 2', got %q", dispatch.Position)
	}
}

func TestStatusAdvancesOnTaskCompleted(t *testing.T) {
	o, s, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	root := mustCreate(t, s, model.TypeInitiative, "Root", "")
	mustCreate(t, s, model.TypeEpic, "Epic", root.ID)

	session, _, err := o.Execute(root.ID, model.ModeSequential, model.OrderDependency, 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	updated, dispatch, err := o.Status(session.ExecutionID, true, model.ProgressKindCompletion, "done with root")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if updated.Status != model.SessionRunning {
		t.Errorf("expected running after first advance, got %s", updated.Status)
	}
	if updated.CurrentIndex != 1 {
		t.Errorf("expected current_index=1, got %d", updated.CurrentIndex)
	}
	if dispatch == nil {
		t.Fatal("expected a dispatch for the second task")
	}

	final, _, err := o.Status(session.ExecutionID, true, model.ProgressKindCompletion, "done with epic")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if final.Status != model.SessionCompleted {
		t.Errorf("expected completed after exhausting plan, got %s", final.Status)
	}
}

func TestStatusBlockerTransitionsToBlockedThenBack(t *testing.T) {
	o, s, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	root := mustCreate(t, s, model.TypeInitiative, "Root", "")

	session, _, err := o.Execute(root.ID, model.ModeSequential, model.OrderDependency, 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	blocked, _, err := o.Status(session.ExecutionID, false, model.ProgressKindBlocker, "waiting on input")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if blocked.Status != model.SessionBlocked {
		t.Fatalf("expected blocked, got %s", blocked.Status)
	}

	running, _, err := o.Status(session.ExecutionID, false, model.ProgressKindProgress, "unblocked now")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if running.Status != model.SessionRunning {
		t.Errorf("expected running again after non-blocker update, got %s", running.Status)
	}
}

func TestCancelForbidsFurtherAdvancement(t *testing.T) {
	o, s, cleanup := setupTestOrchestrator(t)
	defer cleanup()

	root := mustCreate(t, s, model.TypeInitiative, "Root", "")
	session, _, err := o.Execute(root.ID, model.ModeSequential, model.OrderDependency, 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	cancelled, err := o.Cancel(session.ExecutionID, "user requested stop", false, false)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != model.SessionCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected CancelledAt to be set")
	}

	_, _, err = o.Status(session.ExecutionID, true, model.ProgressKindCompletion, "too late")
	if err == nil {
		t.Fatal("expected an error advancing a cancelled session")
	}
	if model.KindOf(err) != model.ErrConflict {
		t.Errorf("expected ErrConflict, got %v", model.KindOf(err))
	}
}
