package syncengine

import (
	"path/filepath"
	"testing"

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

func TestFileToStoreInsertsNewRecord(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	content := []byte(`{"id":"11111111-1111-1111-1111-111111111111","type":"task","title":"Write docs"}`)
	result, err := e.FileToStore("task.json", content, StrategyManualResolution, false)
	if err != nil {
		t.Fatalf("FileToStore failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %v (conflicts=%v)", result.Outcome, result.Conflicts)
	}

	w, err := s.GetWorkItem("11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("GetWorkItem failed: %v", err)
	}
	if w == nil || w.Title != "Write docs" {
		t.Fatalf("expected inserted work item, got %v", w)
	}

	rec := e.SyncRecordFor("task.json")
	if rec == nil || rec.Checksum == "" {
		t.Fatal("expected a recorded checksum after sync")
	}
}

func TestFileToStoreRejectsInvalidType(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	content := []byte(`{"id":"22222222-2222-2222-2222-222222222222","type":"not-a-type","title":"Bad"}`)
	_, err := e.FileToStore("task.json", content, StrategyManualResolution, false)
	if err == nil {
		t.Fatal("expected validation error for unrecognized type")
	}
	if model.KindOf(err) != model.ErrValidation {
		t.Errorf("expected ErrValidation, got %v", model.KindOf(err))
	}
}

func TestFileToStoreValidateOnlyDoesNotMutate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	id := "33333333-3333-3333-3333-333333333333"
	content := []byte(`{"id":"` + id + `","type":"task","title":"Dry run"}`)
	result, err := e.FileToStore("task.json", content, StrategyManualResolution, true)
	if err != nil {
		t.Fatalf("FileToStore failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %v", result.Outcome)
	}

	w, err := s.GetWorkItem(id)
	if err != nil {
		t.Fatalf("GetWorkItem failed: %v", err)
	}
	if w != nil {
		t.Fatal("expected validate_only to perform no mutation")
	}
}

func TestFileToStoreManualResolutionReturnsConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	w := &model.WorkItem{Type: model.TypeTask, Title: "Original", Status: model.StatusReady}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	content := []byte(`{"id":"` + w.ID + `","type":"task","title":"Changed title"}`)
	result, err := e.FileToStore("task.json", content, StrategyManualResolution, false)
	if err != nil {
		t.Fatalf("FileToStore failed: %v", err)
	}
	if result.Outcome != OutcomeConflict {
		t.Fatalf("expected conflict, got %v", result.Outcome)
	}
	if len(result.Conflicts) == 0 {
		t.Fatal("expected at least one conflicting field")
	}

	unchanged, err := s.GetWorkItem(w.ID)
	if err != nil {
		t.Fatalf("GetWorkItem failed: %v", err)
	}
	if unchanged.Title != "Original" {
		t.Errorf("expected manual_resolution to avoid mutation, got title %q", unchanged.Title)
	}
}

func TestFileToStoreFileWinsAppliesIncoming(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	w := &model.WorkItem{Type: model.TypeTask, Title: "Original"}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	content := []byte(`{"id":"` + w.ID + `","type":"task","title":"From file"}`)
	result, err := e.FileToStore("task.json", content, StrategyFileWins, false)
	if err != nil {
		t.Fatalf("FileToStore failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %v", result.Outcome)
	}
	if result.WorkItem.Title != "From file" {
		t.Errorf("expected file_wins to adopt incoming title, got %q", result.WorkItem.Title)
	}
}

func TestCreateBranchDowngradesToManualResolution(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	w := &model.WorkItem{Type: model.TypeTask, Title: "Original"}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	content := []byte(`{"id":"` + w.ID + `","type":"task","title":"Branch attempt"}`)
	result, err := e.FileToStore("task.json", content, StrategyCreateBranch, false)
	if err != nil {
		t.Fatalf("FileToStore failed: %v", err)
	}
	if result.Outcome != OutcomeConflict {
		t.Fatalf("expected create_branch to downgrade to manual_resolution conflict, got %v", result.Outcome)
	}
}

func TestStoreToFileRoundTripsChecksum(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	w := &model.WorkItem{Type: model.TypeTask, Title: "Exportable"}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	result, err := e.StoreToFile(w.ID, "", "json")
	if err != nil {
		t.Fatalf("StoreToFile failed: %v", err)
	}
	if result.Path == "" || len(result.Content) == 0 {
		t.Fatal("expected a non-empty path and payload")
	}
	expected := checksum(result.Content)
	if result.Record.Checksum != expected {
		t.Errorf("expected checksum %s to match content, got record checksum %s", expected, result.Record.Checksum)
	}
}

func TestStoreToFileMissingWorkItem(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	e := New(s, ".jivedev/tasks", false)

	_, err := e.StoreToFile("99999999-9999-9999-9999-999999999999", "", "json")
	if err == nil {
		t.Fatal("expected not_found error")
	}
	if model.KindOf(err) != model.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", model.KindOf(err))
	}
}

func TestSlugifyTitle(t *testing.T) {
	if got := slugify("Fix the Auth Bug!!"); got != "fix-the-auth-bug" {
		t.Errorf("unexpected slug: %q", got)
	}
}
