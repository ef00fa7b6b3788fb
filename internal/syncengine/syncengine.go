// Package syncengine implements the SyncEngine (C5): reconciliation between
// on-disk JSON/YAML work-item files and the Store. Named syncengine (not
// sync) to avoid colliding with the standard library package of that name.
package syncengine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/store"
)

// MergeStrategy resolves a conflict between an incoming file record and the
// Store's existing record, per §4.5.1.
type MergeStrategy string

const (
	StrategyFileWins         MergeStrategy = "file_wins"
	StrategyDatabaseWins     MergeStrategy = "database_wins"
	StrategyAutoMerge        MergeStrategy = "auto_merge"
	StrategyManualResolution MergeStrategy = "manual_resolution"
	// StrategyCreateBranch is reserved; Engine always downgrades it to
	// StrategyManualResolution since there is no branching storage backend.
	StrategyCreateBranch MergeStrategy = "create_branch"
)

func normalizeStrategy(s MergeStrategy) MergeStrategy {
	if s == "" || s == StrategyCreateBranch {
		return StrategyManualResolution
	}
	return s
}

// Outcome is the result of a File->Store reconciliation attempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeConflict Outcome = "conflict"
)

// SyncResult is returned by FileToStore.
type SyncResult struct {
	Outcome   Outcome
	WorkItem  *model.WorkItem
	Conflicts []string
	Record    *model.SyncRecord
}

// Engine reconciles on-disk work-item files with a Store, tracking
// SyncRecords keyed by path.
type Engine struct {
	store            *store.Store
	mu               sync.Mutex
	records          map[string]*model.SyncRecord
	compressPayloads bool
	tasksRoot        string
}

// New builds an Engine. tasksRoot is the base directory used by DefaultPath
// when Store->File sync is not given an explicit path.
func New(s *store.Store, tasksRoot string, compressPayloads bool) *Engine {
	return &Engine{
		store:            s,
		records:          map[string]*model.SyncRecord{},
		compressPayloads: compressPayloads,
		tasksRoot:        tasksRoot,
	}
}

// checksum returns the hex-encoded SHA-256 digest of content, per
// invariant 3.2(7).
func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FileToStore reconciles the file at path (with the given raw content) into
// the Store, applying strategy only when a conflict is detected.
func (e *Engine) FileToStore(path string, content []byte, strategy MergeStrategy, validateOnly bool) (*SyncResult, error) {
	rec, err := parseFileRecord(path, content)
	if err != nil {
		return nil, err
	}

	if errs := rec.applyDefaultsAndValidate(); len(errs) > 0 {
		return nil, model.NewError(model.ErrValidation, fmt.Sprintf("invalid work item file %s: %v", path, errs))
	}

	if validateOnly {
		return &SyncResult{Outcome: OutcomeSuccess}, nil
	}

	incoming := rec.toWorkItem()

	existing, err := e.store.GetWorkItem(incoming.ID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if err := e.store.CreateWorkItem(incoming); err != nil {
			return nil, err
		}
		e.recordSync(path, incoming.ID, content)
		return &SyncResult{Outcome: OutcomeSuccess, WorkItem: incoming, Record: e.records[path]}, nil
	}

	conflicts := detectConflicts(existing, incoming)
	if len(conflicts) == 0 {
		updated, err := e.store.UpdateWorkItem(existing.ID, updateFrom(incoming))
		if err != nil {
			return nil, err
		}
		e.recordSync(path, updated.ID, content)
		return &SyncResult{Outcome: OutcomeSuccess, WorkItem: updated, Record: e.records[path]}, nil
	}

	strategy = normalizeStrategy(strategy)
	if strategy == StrategyManualResolution {
		return &SyncResult{Outcome: OutcomeConflict, Conflicts: conflicts}, nil
	}

	resolved := applyMergeStrategy(strategy, existing, incoming)
	updated, err := e.store.UpdateWorkItem(existing.ID, updateFrom(resolved))
	if err != nil {
		return nil, err
	}
	e.recordSync(path, updated.ID, content)
	return &SyncResult{Outcome: OutcomeSuccess, WorkItem: updated, Conflicts: conflicts, Record: e.records[path]}, nil
}

func (e *Engine) recordSync(path, workItemID string, content []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records[path] = &model.SyncRecord{
		Path:       path,
		WorkItemID: workItemID,
		Checksum:   checksum(content),
		LastSynced: time.Now().UTC(),
	}
}

// SyncRecordFor returns the last recorded reconciliation state for path, or
// nil if none exists.
func (e *Engine) SyncRecordFor(path string) *model.SyncRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.records[path]
}

// StoreToFileResult carries the bytes StoreToFile produced; the caller
// writes them to disk.
type StoreToFileResult struct {
	Path    string
	Content []byte
	Record  *model.SyncRecord
}

// StoreToFile serializes a stored work item to its file form. If path is
// empty, DefaultPath derives one from the work item's type/id/title.
func (e *Engine) StoreToFile(id, path, format string) (*StoreToFileResult, error) {
	w, err := e.store.GetWorkItem(id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, model.NewError(model.ErrNotFound, "work item "+id+" not found")
	}

	if format == "" {
		format = "json"
	}
	if path == "" {
		path = DefaultPath(e.tasksRoot, w, format)
	}

	rec := fromWorkItem(w, time.Now().UTC())
	canonical, err := serialize(rec, format)
	if err != nil {
		return nil, model.WrapError(model.ErrInternal, "serialize work item for sync", err)
	}

	sum := checksum(canonical)
	output := canonical
	if e.compressPayloads {
		output, err = gzipCompress(canonical)
		if err != nil {
			return nil, model.WrapError(model.ErrInternal, "compress sync payload", err)
		}
	}

	e.mu.Lock()
	e.records[path] = &model.SyncRecord{
		Path:       path,
		WorkItemID: w.ID,
		Checksum:   sum,
		LastSynced: time.Now().UTC(),
	}
	syncRecord := e.records[path]
	e.mu.Unlock()

	return &StoreToFileResult{Path: path, Content: output, Record: syncRecord}, nil
}

func gzipCompress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// updateFrom converts a resolved WorkItem back into a partial
// store.WorkItemUpdate covering the fields SyncEngine is allowed to write.
func updateFrom(w *model.WorkItem) store.WorkItemUpdate {
	status := w.Status
	priority := w.Priority
	complexity := w.Complexity
	progress := w.ProgressPercentage
	assignee := w.Assignee
	return store.WorkItemUpdate{
		Title:              &w.Title,
		Description:        &w.Description,
		Status:             &status,
		Priority:           &priority,
		Complexity:         &complexity,
		ParentID:           &w.ParentID,
		Dependencies:       w.Dependencies,
		AcceptanceCriteria: w.AcceptanceCriteria,
		ProgressPercentage: &progress,
		Tags:               w.Tags,
		Metadata:           w.Metadata,
		Assignee:           &assignee,
	}
}
