package core

import (
	"github.com/jivedev/jivecore/internal/model"
	"github.com/jivedev/jivecore/internal/orchestrator"
)

// ExecuteWorkItemRequest is execute_work_item's argument shape.
type ExecuteWorkItemRequest struct {
	WorkItemID     string
	Mode           model.SessionMode
	Order          model.PlanOrder
	TimeoutMinutes int
}

// ExecutionResponse wraps an ExecutionSession plus the next task dispatch.
type ExecutionResponse struct {
	Status   Status
	Session  *model.ExecutionSession
	Dispatch *orchestrator.TaskDispatch
	Error    string
}

// ExecuteWorkItem resolves identifier and starts a new ExecutionSession.
func (c *Core) ExecuteWorkItem(req ExecuteWorkItemRequest) ExecutionResponse {
	session, dispatch, err := c.Orchestrator.Execute(req.WorkItemID, req.Mode, req.Order, req.TimeoutMinutes)
	if err != nil {
		return ExecutionResponse{Status: statusFor(err), Error: err.Error()}
	}
	return ExecutionResponse{Status: StatusSuccess, Session: session, Dispatch: dispatch}
}

// GetExecutionStatusRequest is get_execution_status's argument shape.
type GetExecutionStatusRequest struct {
	ExecutionID   string
	TaskCompleted bool
	Kind          model.ProgressKind
	Message       string
}

// GetExecutionStatus advances or inspects a session, per §4.6.3.
func (c *Core) GetExecutionStatus(req GetExecutionStatusRequest) ExecutionResponse {
	session, dispatch, err := c.Orchestrator.Status(req.ExecutionID, req.TaskCompleted, req.Kind, req.Message)
	if err != nil {
		return ExecutionResponse{Status: statusFor(err), Error: err.Error()}
	}
	return ExecutionResponse{Status: StatusSuccess, Session: session, Dispatch: dispatch}
}

// CancelExecutionRequest is cancel_execution's argument shape.
type CancelExecutionRequest struct {
	ExecutionID     string
	Reason          string
	Force           bool
	RollbackChanges bool
}

// CancelExecution terminates a session.
func (c *Core) CancelExecution(req CancelExecutionRequest) ExecutionResponse {
	session, err := c.Orchestrator.Cancel(req.ExecutionID, req.Reason, req.Force, req.RollbackChanges)
	if err != nil {
		return ExecutionResponse{Status: statusFor(err), Error: err.Error()}
	}
	return ExecutionResponse{Status: StatusSuccess, Session: session}
}
