package core

import (
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/syncengine"
)

// SyncFileToDatabaseRequest is sync_file_to_database's argument shape.
type SyncFileToDatabaseRequest struct {
	FilePath     string
	FileContent  []byte
	Strategy     syncengine.MergeStrategy
	ValidateOnly bool
}

// SyncResponse wraps a File<->Store reconciliation outcome.
type SyncResponse struct {
	Status Status
	Result *syncengine.SyncResult
	Error  string
}

// SyncFileToDatabase reconciles an on-disk work-item file into the Store.
func (c *Core) SyncFileToDatabase(req SyncFileToDatabaseRequest) SyncResponse {
	result, err := c.Sync.FileToStore(req.FilePath, req.FileContent, req.Strategy, req.ValidateOnly)
	if err != nil {
		return SyncResponse{Status: statusFor(err), Error: err.Error()}
	}
	status := StatusSuccess
	if result.Outcome == syncengine.OutcomeConflict {
		status = StatusConflict
	}
	return SyncResponse{Status: status, Result: result}
}

// SyncDatabaseToFileRequest is sync_database_to_file's argument shape. Path
// and Format are both optional: an empty Path derives one from the
// resolved work item (type/id/title); an empty Format defaults to "json".
type SyncDatabaseToFileRequest struct {
	WorkItemID string
	Path       string
	Format     string
}

// StoreToFileResponse wraps StoreToFile's output.
type StoreToFileResponse struct {
	Status Status
	Result *syncengine.StoreToFileResult
	Error  string
}

// SyncDatabaseToFile serializes a stored work item to its on-disk file
// form; the caller is responsible for the actual file write.
func (c *Core) SyncDatabaseToFile(req SyncDatabaseToFileRequest) StoreToFileResponse {
	id, err := c.Resolver.Resolve(req.WorkItemID)
	if err != nil {
		return StoreToFileResponse{Status: statusFor(err), Error: err.Error()}
	}
	if id == "" {
		return StoreToFileResponse{Status: StatusNotFound, Error: "no work item matches " + req.WorkItemID}
	}
	result, err := c.Sync.StoreToFile(id, req.Path, req.Format)
	if err != nil {
		return StoreToFileResponse{Status: statusFor(err), Error: err.Error()}
	}
	return StoreToFileResponse{Status: StatusSuccess, Result: result}
}

// SyncStatusRequest is get_sync_status's argument shape. A non-empty
// FilePath takes precedence; otherwise, whatever else is set (including
// CheckAll), GetSyncStatus reports an unsupported-selector error.
type SyncStatusRequest struct {
	Identifier string
	FilePath   string
	WorkItemID string
	CheckAll   bool
}

// SyncStatusResponse wraps a single tracked SyncRecord.
type SyncStatusResponse struct {
	Status Status
	Record *model.SyncRecord
	Error  string
}

// GetSyncStatus inspects tracked reconciliation state. Only FilePath is a
// direct lookup key today (SyncEngine indexes records by path); Identifier,
// WorkItemID, and CheckAll are accepted for interface symmetry with §6.1's
// table but are not yet implemented, since SyncEngine has no secondary index
// to serve them. That is reported as StatusError ("unsupported selector"),
// distinct from StatusNotFound, so a caller cannot mistake "this selector
// isn't wired up" for "no record exists".
func (c *Core) GetSyncStatus(req SyncStatusRequest) SyncStatusResponse {
	if req.FilePath != "" {
		rec := c.Sync.SyncRecordFor(req.FilePath)
		if rec == nil {
			return SyncStatusResponse{Status: StatusNotFound, Error: "no sync record for " + req.FilePath}
		}
		return SyncStatusResponse{Status: StatusSuccess, Record: rec}
	}

	err := model.NewError(model.ErrValidation,
		"get_sync_status: identifier/work_item_id/check_all selectors are not yet supported, use file_path")
	return SyncStatusResponse{Status: statusFor(err), Error: err.Error()}
}
