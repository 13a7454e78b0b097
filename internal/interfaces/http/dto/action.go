package dto

import "net/http"

// Action tags returned with every ActionResult
const (
	ActionSyncItems        = "SYNC_ITEM_MASTER"
	ActionSyncCustomers    = "SYNC_CUSTOMER_MASTER"
	ActionSyncSuppliers    = "SYNC_SUPPLIER_MASTER"
	ActionImportBatch      = "IMPORT_BATCH"
	ActionImportUpload     = "IMPORT_UPLOAD"
	ActionImportParse      = "IMPORT_PARSE"
	ActionDeleteRecord     = "DELETE_RECORD"
	ActionTriggerScheduled = "TRIGGER_SYNC_JOB"
)

// GenericErrorMessage is shown for failures that are not the caller's fault
const GenericErrorMessage = "An unexpected error occurred"

// ActionResult is the discriminated result of a sync or import action. The
// HTTP status line mirrors Status.
type ActionResult struct {
	Error   bool   `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// NewActionSuccess creates a successful action result
func NewActionSuccess(action, message string, data any) ActionResult {
	return ActionResult{
		Status:  http.StatusOK,
		Message: message,
		Action:  action,
		Data:    data,
	}
}

// NewActionError creates a failed action result. Data may still carry a
// partial result, such as the stats of a faulted import batch.
func NewActionError(action string, status int, message string, data any) ActionResult {
	return ActionResult{
		Error:   true,
		Status:  status,
		Message: message,
		Action:  action,
		Data:    data,
	}
}
