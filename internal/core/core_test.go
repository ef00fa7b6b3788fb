package core

import (
	"path/filepath"
	"testing"

	"github.com/jivedev/jivecore/internal/config"
	"github.com/jivedev/jivecore/internal/model"
)

func setupTestCore(t *testing.T) (*Core, func()) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.DataPath = filepath.Join(t.TempDir(), "test.db")
	cfg.Sync.TasksRoot = t.TempDir()

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, func() { c.Close() }
}

func TestCreateAndGetWorkItem(t *testing.T) {
	c, cleanup := setupTestCore(t)
	defer cleanup()

	resp := c.CreateWorkItem(CreateWorkItemRequest{
		Type:        model.TypeInitiative,
		Title:       "Launch v2",
		Description: "Ship the v2 rewrite",
	})
	if resp.Status != StatusSuccess {
		t.Fatalf("CreateWorkItem failed: %s", resp.Error)
	}

	got := c.GetWorkItem(resp.WorkItem.ID)
	if got.Status != StatusSuccess {
		t.Fatalf("GetWorkItem failed: %s", got.Error)
	}
	if got.WorkItem.Title != "Launch v2" {
		t.Errorf("expected title 'Launch v2', got %q", got.WorkItem.Title)
	}

	byTitle := c.GetWorkItem("Launch v2")
	if byTitle.Status != StatusSuccess || byTitle.WorkItem.ID != resp.WorkItem.ID {
		t.Errorf("expected resolver to find %s by title, got %+v", resp.WorkItem.ID, byTitle)
	}
}

func TestCreateWorkItemRejectsBadHierarchy(t *testing.T) {
	c, cleanup := setupTestCore(t)
	defer cleanup()

	resp := c.CreateWorkItem(CreateWorkItemRequest{Type: model.TypeTask, Title: "Orphan task"})
	if resp.Status != StatusError {
		t.Fatalf("expected error for parentless non-initiative, got %s", resp.Status)
	}
}

func TestValidateDependenciesDetectsCycle(t *testing.T) {
	c, cleanup := setupTestCore(t)
	defer cleanup()

	a := c.CreateWorkItem(CreateWorkItemRequest{Type: model.TypeInitiative, Title: "A"}).WorkItem
	b := c.CreateWorkItem(CreateWorkItemRequest{Type: model.TypeInitiative, Title: "B"}).WorkItem

	if err := c.Store.CreateDependency(&model.Dependency{SourceID: a.ID, TargetID: b.ID, Kind: model.DependencyDependsOn}); err != nil {
		t.Fatalf("CreateDependency failed: %v", err)
	}
	if err := c.Store.CreateDependency(&model.Dependency{SourceID: b.ID, TargetID: a.ID, Kind: model.DependencyDependsOn}); err != nil {
		t.Fatalf("CreateDependency failed: %v", err)
	}

	resp := c.ValidateDependencies(ValidateDependenciesRequest{WorkItemIDs: []string{a.ID, b.ID}, SuggestFixes: true})
	if resp.Status != StatusSuccess {
		t.Fatalf("ValidateDependencies failed: %s", resp.Error)
	}
	if resp.Report.IsValid {
		t.Fatal("expected a cycle to be detected")
	}
	if len(resp.Report.SuggestedFixes) != 1 {
		t.Fatalf("expected 1 suggested fix, got %d", len(resp.Report.SuggestedFixes))
	}
}

func TestExecuteWorkItemLifecycle(t *testing.T) {
	c, cleanup := setupTestCore(t)
	defer cleanup()

	root := c.CreateWorkItem(CreateWorkItemRequest{Type: model.TypeInitiative, Title: "Root"}).WorkItem

	exec := c.ExecuteWorkItem(ExecuteWorkItemRequest{WorkItemID: root.ID, Mode: model.ModeSequential, Order: model.OrderDependency})
	if exec.Status != StatusSuccess {
		t.Fatalf("ExecuteWorkItem failed: %s", exec.Error)
	}
	if exec.Dispatch == nil || exec.Dispatch.Task.ID != root.ID {
		t.Fatalf("expected first dispatch to be root, got %+v", exec.Dispatch)
	}

	done := c.GetExecutionStatus(GetExecutionStatusRequest{
		ExecutionID:   exec.Session.ExecutionID,
		TaskCompleted: true,
		Kind:          model.ProgressKindCompletion,
		Message:       "root done",
	})
	if done.Status != StatusSuccess {
		t.Fatalf("GetExecutionStatus failed: %s", done.Error)
	}
	if done.Session.Status != model.SessionCompleted {
		t.Errorf("expected completed (single-item plan), got %s", done.Session.Status)
	}

	cancel := c.CancelExecution(CancelExecutionRequest{ExecutionID: exec.Session.ExecutionID, Reason: "already done"})
	if cancel.Status != StatusConflict {
		t.Fatalf("expected conflict cancelling a completed session, got %s: %s", cancel.Status, cancel.Error)
	}
}
