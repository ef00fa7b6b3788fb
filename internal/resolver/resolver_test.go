package resolver

import (
	"path/filepath"
	"testing"
	"time"

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

func TestResolveByUUID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	r := New(s)

	w := &model.WorkItem{Type: model.TypeTask, Title: "Some Task"}
	if err := s.CreateWorkItem(w); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	id, err := r.Resolve(w.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != w.ID {
		t.Errorf("expected %s, got %s", w.ID, id)
	}
}

func TestResolveUnresolvableReturnsEmpty(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	r := New(s)

	id, err := r.Resolve("completely unrelated phrase that matches nothing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "" {
		t.Errorf("expected empty id, got %s", id)
	}
}

func TestResolveExactTitleTieBreakByUpdatedAt(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	r := New(s)

	first := &model.WorkItem{Type: model.TypeTask, Title: "Migration"}
	if err := s.CreateWorkItem(first); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second := &model.WorkItem{Type: model.TypeTask, Title: "Migration"}
	if err := s.CreateWorkItem(second); err != nil {
		t.Fatalf("CreateWorkItem failed: %v", err)
	}

	id, err := r.Resolve("Migration")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != second.ID {
		t.Errorf("expected second item %s (most recently updated), got %s", second.ID, id)
	}

	newTitle := "Migration"
	if _, err := s.UpdateWorkItem(first.ID, store.WorkItemUpdate{Title: &newTitle, Assignee: strPtr("alice")}); err != nil {
		t.Fatalf("UpdateWorkItem failed: %v", err)
	}

	id, err = r.Resolve("Migration")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != first.ID {
		t.Errorf("expected first item %s after its update, got %s", first.ID, id)
	}
}

func strPtr(s string) *string { return &s }
