package syncengine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jivedev/jivecore/internal/model"
)

// FileRecord is the on-disk shape of a work item: the wire format SyncEngine
// reads from and writes to JSON/YAML files, distinct from model.WorkItem so
// the file contract can evolve independently of the Store's schema.
type FileRecord struct {
	ID                 string            `json:"id" yaml:"id"`
	Type               string            `json:"type" yaml:"type"`
	Title              string            `json:"title" yaml:"title"`
	Description        string            `json:"description,omitempty" yaml:"description,omitempty"`
	Status             string            `json:"status,omitempty" yaml:"status,omitempty"`
	Priority           string            `json:"priority,omitempty" yaml:"priority,omitempty"`
	Complexity         string            `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	ParentID           string            `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Dependencies       []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	AcceptanceCriteria []string          `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	ProgressPercentage float64           `json:"progress_percentage,omitempty" yaml:"progress_percentage,omitempty"`
	Tags               []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Assignee           string            `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	UpdatedAt          *time.Time        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// formatForPath infers JSON vs YAML from a path's extension.
func formatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unrecognized file extension %q, expected .json/.yaml/.yml", filepath.Ext(path))
	}
}

// parseFileRecord decodes content according to format inferred from path.
func parseFileRecord(path string, content []byte) (*FileRecord, error) {
	format, err := formatForPath(path)
	if err != nil {
		return nil, model.WrapError(model.ErrParse, "infer file format", err)
	}
	var rec FileRecord
	switch format {
	case "json":
		if err := json.Unmarshal(content, &rec); err != nil {
			return nil, model.WrapError(model.ErrParse, "parse json work item file", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(content, &rec); err != nil {
			return nil, model.WrapError(model.ErrParse, "parse yaml work item file", err)
		}
	}
	return &rec, nil
}

// applyDefaultsAndValidate validates id/title/type and the type, status and
// priority enum ranges, applying status=not_started and priority=medium
// defaults for missing fields.
func (r *FileRecord) applyDefaultsAndValidate() []string {
	var errs []string

	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, "id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, "title is required")
	}
	if strings.TrimSpace(r.Type) == "" {
		errs = append(errs, "type is required")
	} else if !model.ItemType(r.Type).Valid() {
		errs = append(errs, fmt.Sprintf("type %q is not one of initiative/epic/feature/story/task", r.Type))
	}

	if r.Status == "" {
		r.Status = "not_started"
	} else if !model.ValidStatus(model.Status(r.Status)) {
		errs = append(errs, fmt.Sprintf("status %q is not recognized", r.Status))
	}

	if r.Priority == "" {
		r.Priority = string(model.PriorityMedium)
	} else {
		switch model.Priority(r.Priority) {
		case model.PriorityCritical, model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		default:
			errs = append(errs, fmt.Sprintf("priority %q is not one of critical/high/medium/low", r.Priority))
		}
	}

	return errs
}

// toWorkItem maps a validated FileRecord onto a model.WorkItem shell.
// CreatedAt/Embedding are left zero; the Store fills those in on write.
func (r *FileRecord) toWorkItem() *model.WorkItem {
	canonicalStatus, _ := model.NormalizeStatus(model.Status(r.Status))
	w := &model.WorkItem{
		ID:                 r.ID,
		Type:               model.ItemType(r.Type),
		Title:              r.Title,
		Description:        r.Description,
		Status:             canonicalStatus,
		Priority:           model.Priority(r.Priority),
		Complexity:         model.Complexity(r.Complexity),
		ParentID:           r.ParentID,
		Dependencies:       r.Dependencies,
		AcceptanceCriteria: r.AcceptanceCriteria,
		ProgressPercentage: r.ProgressPercentage,
		Tags:               r.Tags,
		Metadata:           r.Metadata,
		Assignee:           r.Assignee,
	}
	if r.UpdatedAt != nil {
		w.UpdatedAt = *r.UpdatedAt
	}
	return w
}

// fromWorkItem builds the file-wire representation of a stored work item,
// stamping metadata.last_synced and metadata.file_version per §4.5.
func fromWorkItem(w *model.WorkItem, syncedAt time.Time) *FileRecord {
	metadata := map[string]string{}
	for k, v := range w.Metadata {
		metadata[k] = v
	}
	metadata["last_synced"] = syncedAt.UTC().Format(time.RFC3339)
	metadata["file_version"] = "1.0"

	updatedAt := w.UpdatedAt
	return &FileRecord{
		ID:                 w.ID,
		Type:               string(w.Type),
		Title:              w.Title,
		Description:        w.Description,
		Status:             string(w.Status),
		Priority:           string(w.Priority),
		Complexity:         string(w.Complexity),
		ParentID:           w.ParentID,
		Dependencies:       w.Dependencies,
		AcceptanceCriteria: w.AcceptanceCriteria,
		ProgressPercentage: w.ProgressPercentage,
		Tags:               w.Tags,
		Metadata:           metadata,
		Assignee:           w.Assignee,
		UpdatedAt:          &updatedAt,
	}
}

// serialize encodes rec in the requested format: JSON with 2-space indent,
// or YAML with the library's default block style.
func serialize(rec *FileRecord, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(rec)
	default:
		return json.MarshalIndent(rec, "", "  ")
	}
}

// slugify lowercases title and replaces runs of non-alphanumeric characters
// with a single hyphen, trimming leading/trailing hyphens.
func slugify(title string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// DefaultPath returns the `.jivedev/tasks/<type>/<id>_<slug>.<ext>` path
// convention for a work item, per §6.2.
func DefaultPath(tasksRoot string, w *model.WorkItem, format string) string {
	ext := ".json"
	if format == "yaml" {
		ext = ".yaml"
	}
	filename := fmt.Sprintf("%s_%s%s", w.ID, slugify(w.Title), ext)
	return filepath.Join(tasksRoot, string(w.Type), filename)
}
