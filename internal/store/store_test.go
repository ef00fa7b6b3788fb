package store

import (
	"path/filepath"
	"testing"

	"github.com/jivedev/jivecore/internal/embedding"
	"github.com/jivedev/jivecore/internal/model"
)

// stubProvider returns a deterministic embedding so search tests don't need
// a live HTTP endpoint.
type stubProvider struct{ dim int }

func (p *stubProvider) Embed(text string) ([]float32, error) {
	vec := make([]float32, p.dim)
	for i, r := range text {
		vec[i%p.dim] += float32(r)
	}
	return vec, nil
}

func (p *stubProvider) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = p.Embed(t)
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int { return p.dim }

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	svc := embedding.NewService(&stubProvider{dim: 8}, 8)
	s, err := Open(dbPath, svc, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	return s, func() { s.Close() }
}

func TestCreateAndGetWorkItem(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	w := &model.WorkItem{
		Type:        model.TypeEpic,
		Title:       "E-commerce Platform Modernization",
		Description: "Modernize the storefront",
	}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}
	if w.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}

	got, err := s.GetWorkItem(w.ID)
	if err != nil {
		t.Fatalf("GetWorkItem failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record, got nil")
	}
	if got.Title != w.Title {
		t.Errorf("expected title %q, got %q", w.Title, got.Title)
	}
	if len(got.Embedding) != 8 {
		t.Errorf("expected embedding dimension 8, got %d", len(got.Embedding))
	}
}

func TestCreateWorkItemRejectsEmptyTitle(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	err := s.CreateWorkItem(&model.WorkItem{Type: model.TypeTask, Title: "  "})
	if err == nil {
		t.Fatal("expected an error for empty title")
	}
	if model.KindOf(err) != model.ErrValidation {
		t.Errorf("expected validation error, got %v", model.KindOf(err))
	}
}

func TestUpdateWorkItemRegeneratesEmbeddingOnTextChange(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	w := &model.WorkItem{Type: model.TypeTask, Title: "Original", Description: "desc"}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}
	before := append([]float32(nil), w.Embedding...)

	newTitle := "Changed title entirely"
	updated, err := s.UpdateWorkItem(w.ID, WorkItemUpdate{Title: &newTitle})
	if err != nil {
		t.Fatalf("UpdateWorkItem failed: %v", err)
	}

	same := true
	for i := range before {
		if before[i] != updated.Embedding[i] {
			same = false
		}
	}
	if same {
		t.Error("expected embedding to change when title changes")
	}
}

func TestUpdateWorkItemEnforcesProgressInvariant(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	w := &model.WorkItem{Type: model.TypeTask, Title: "T", ProgressPercentage: 40}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	done := model.StatusDone
	updated, err := s.UpdateWorkItem(w.ID, WorkItemUpdate{Status: &done})
	if err != nil {
		t.Fatalf("UpdateWorkItem failed: %v", err)
	}
	if updated.ProgressPercentage != 100 {
		t.Errorf("expected progress 100 on status=done, got %v", updated.ProgressPercentage)
	}
}

func TestListWorkItemsFilterAndPagination(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		if err := s.CreateWorkItem(&model.WorkItem{
			Type:  model.TypeTask,
			Title: "Task",
		}); err != nil {
			t.Fatalf("CreateWorkItem failed: %v", err)
		}
	}

	page1, err := s.ListWorkItems(WorkItemFilter{}, "created_at", true, 2, 0)
	if err != nil {
		t.Fatalf("ListWorkItems failed: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page1))
	}

	page2, err := s.ListWorkItems(WorkItemFilter{}, "created_at", true, 2, 2)
	if err != nil {
		t.Fatalf("ListWorkItems failed: %v", err)
	}
	if page1[0].ID == page2[0].ID {
		t.Error("expected distinct pages")
	}
}

func TestSearchWorkItemsEmptyQuery(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	results, err := s.SearchWorkItems("", SearchHybrid, 10, WorkItemFilter{})
	if err != nil {
		t.Fatalf("expected no error for empty query, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSearchWorkItemsKeywordFallback(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	w := &model.WorkItem{
		Type:        model.TypeEpic,
		Title:       "E-commerce Platform Modernization",
		Description: "Modernize storefront and checkout",
	}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	results, err := s.SearchWorkItems("ecommerce modernization", SearchHybrid, 10, WorkItemFilter{})
	if err != nil {
		t.Fatalf("SearchWorkItems failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
}

func TestEmbeddingServiceEmptyInputIsZeroVector(t *testing.T) {
	svc := embedding.NewService(&stubProvider{dim: 8}, 8)
	vec := svc.Embed("")
	for _, f := range vec {
		if f != 0 {
			t.Fatalf("expected zero vector for empty input, got %v", vec)
		}
	}
}

func TestAppendAndReadExecutionLog(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if err := s.AppendLog(&LogEntry{ExecutionID: "exec-1", WorkItemID: "w-1", Kind: "progress", Message: "started"}); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
	entries, err := s.LogForExecution("exec-1")
	if err != nil {
		t.Fatalf("LogForExecution failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestTaskLifecycle(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	task := &Task{WorkItemID: "w-1", ExecutionID: "exec-1"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s.UpdateTaskProgress(task.ID, TaskCompleted, 100, "done"); err != nil {
		t.Fatalf("UpdateTaskProgress failed: %v", err)
	}
	tasks, err := s.TasksForExecution("exec-1")
	if err != nil {
		t.Fatalf("TasksForExecution failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != TaskCompleted {
		t.Fatalf("expected 1 completed task, got %+v", tasks)
	}
	if tasks[0].CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}
