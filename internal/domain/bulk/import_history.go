package bulk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// ImportEntity names what a spreadsheet import creates
type ImportEntity string

const (
	ImportEntityItems            ImportEntity = "items"
	ImportEntityBusinessPartners ImportEntity = "business-partners"
	ImportEntityRequisitions     ImportEntity = "requisitions"
	ImportEntitySupplierQuotes   ImportEntity = "supplier-quotes"
)

// IsValid checks if the entity is importable
func (e ImportEntity) IsValid() bool {
	switch e {
	case ImportEntityItems, ImportEntityBusinessPartners,
		ImportEntityRequisitions, ImportEntitySupplierQuotes:
		return true
	}
	return false
}

// ImportStatus is the status of a server-driven import session
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// IsValid checks if the status is valid
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusPending, ImportStatusProcessing, ImportStatusCompleted, ImportStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ImportHistory records one uploaded file and how its import went
type ImportHistory struct {
	ID            uuid.UUID    `json:"id"`
	Entity        ImportEntity `json:"entity"`
	FileName      string       `json:"file_name"`
	ObjectKey     string       `json:"object_key,omitempty"`
	FileSize      int64        `json:"file_size"`
	TotalRows     int          `json:"total_rows"`
	CompletedRows int          `json:"completed_rows"`
	ErrorRows     int          `json:"error_rows"`
	Status        ImportStatus `json:"status"`
	FailureReason string       `json:"failure_reason,omitempty"`
	Note          string       `json:"note,omitempty"`
	Errors        []RowFailure `json:"errors,omitempty"`
	ImportedBy    string       `json:"imported_by"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewImportHistory creates a pending import record
func NewImportHistory(entity ImportEntity, fileName string, fileSize int64, importedBy string) (*ImportHistory, error) {
	if !entity.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid import entity: %s", entity))
	}
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "File name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "File size cannot be negative")
	}

	now := time.Now()
	return &ImportHistory{
		ID:         uuid.New(),
		Entity:     entity,
		FileName:   fileName,
		FileSize:   fileSize,
		Status:     ImportStatusPending,
		Errors:     make([]RowFailure, 0),
		ImportedBy: importedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AttachObject records where the uploaded file was archived
func (h *ImportHistory) AttachObject(key string) {
	h.ObjectKey = key
	h.UpdatedAt = time.Now()
}

// AddNote appends a remark for the user, e.g. missing reference data
func (h *ImportHistory) AddNote(note string) {
	if h.Note != "" {
		h.Note += "; "
	}
	h.Note += note
	h.UpdatedAt = time.Now()
}

// StartProcessing marks the import as started
func (h *ImportHistory) StartProcessing(totalRows int) error {
	if h.Status != ImportStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", h.Status))
	}
	if totalRows < 0 {
		return shared.NewDomainError("INVALID_INPUT", "Total rows cannot be negative")
	}

	now := time.Now()
	h.Status = ImportStatusProcessing
	h.TotalRows = totalRows
	h.StartedAt = &now
	h.UpdatedAt = now
	return nil
}

// Record copies the running counters from stats. At most maxErrors row
// failures are kept; ErrorRows still counts all of them.
func (h *ImportHistory) Record(stats ImportBatchStats, maxErrors int) error {
	if h.Status != ImportStatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot record progress in state: %s", h.Status))
	}
	h.CompletedRows = stats.Completed
	h.ErrorRows = len(stats.Errors)
	h.Errors = stats.Errors
	if maxErrors > 0 && len(h.Errors) > maxErrors {
		h.Errors = h.Errors[:maxErrors]
	}
	h.UpdatedAt = time.Now()
	return nil
}

// Complete marks the import as finished with the final stats
func (h *ImportHistory) Complete(stats ImportBatchStats, maxErrors int) error {
	if err := h.Record(stats, maxErrors); err != nil {
		return err
	}
	now := time.Now()
	h.Status = ImportStatusCompleted
	h.CompletedAt = &now
	h.UpdatedAt = now
	return nil
}

// Fail marks the import as failed
func (h *ImportHistory) Fail(reason string) error {
	if h.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", h.Status))
	}
	now := time.Now()
	h.Status = ImportStatusFailed
	h.FailureReason = reason
	h.CompletedAt = &now
	h.UpdatedAt = now
	return nil
}

// ErrorsJSON returns the row failures as a JSON string
func (h *ImportHistory) ErrorsJSON() (string, error) {
	if len(h.Errors) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(h.Errors)
	if err != nil {
		return "", fmt.Errorf("failed to marshal row failures: %w", err)
	}
	return string(data), nil
}

// SetErrorsFromJSON parses row failures from a JSON string
func (h *ImportHistory) SetErrorsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		h.Errors = make([]RowFailure, 0)
		return nil
	}
	var failures []RowFailure
	if err := json.Unmarshal([]byte(jsonStr), &failures); err != nil {
		return fmt.Errorf("failed to unmarshal row failures: %w", err)
	}
	h.Errors = failures
	return nil
}

// SuccessRate returns the share of written rows as a percentage (0-100)
func (h *ImportHistory) SuccessRate() float64 {
	if h.TotalRows == 0 {
		return 0
	}
	return float64(h.CompletedRows) / float64(h.TotalRows) * 100
}

// Duration returns how long the import ran, or has been running
func (h *ImportHistory) Duration() time.Duration {
	if h.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if h.CompletedAt != nil {
		end = *h.CompletedAt
	}
	return end.Sub(*h.StartedAt)
}
