package importapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/spreadsheet"
	"github.com/google/uuid"
)

// ImportHistoryService reads the records of server-driven imports
type ImportHistoryService struct {
	historyRepo bulk.ImportHistoryRepository
}

// NewImportHistoryService creates a new ImportHistoryService
func NewImportHistoryService(historyRepo bulk.ImportHistoryRepository) *ImportHistoryService {
	return &ImportHistoryService{
		historyRepo: historyRepo,
	}
}

// GetHistory retrieves a specific import history by ID
func (s *ImportHistoryService) GetHistory(ctx context.Context, historyID uuid.UUID) (*bulk.ImportHistory, error) {
	return s.historyRepo.FindByID(ctx, historyID)
}

// ListHistoryFilter defines the filter options for listing import histories
type ListHistoryFilter struct {
	Entity      string
	Status      string
	ImportedBy  string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

// ListHistory retrieves import history with pagination and filtering.
// Unknown entity or status values are ignored.
func (s *ImportHistoryService) ListHistory(
	ctx context.Context,
	filter ListHistoryFilter,
	page, pageSize int,
) (*bulk.ImportHistoryListResult, error) {
	repoFilter := bulk.ImportHistoryFilter{
		ImportedBy:  filter.ImportedBy,
		StartedFrom: filter.StartedFrom,
		StartedTo:   filter.StartedTo,
	}

	if filter.Entity != "" {
		entity := bulk.ImportEntity(filter.Entity)
		if entity.IsValid() {
			repoFilter.Entity = &entity
		}
	}

	if filter.Status != "" {
		status := bulk.ImportStatus(filter.Status)
		if status.IsValid() {
			repoFilter.Status = &status
		}
	}

	return s.historyRepo.FindAll(ctx, repoFilter, page, pageSize)
}

var errorReportColumns = []spreadsheet.Column{
	{Header: "Row", Width: 8},
	{Header: "Errors", Width: 80},
}

// ErrorsWorkbook renders the row failures of an import as xlsx for download
func (s *ImportHistoryService) ErrorsWorkbook(ctx context.Context, historyID uuid.UUID) ([]byte, string, error) {
	history, err := s.historyRepo.FindByID(ctx, historyID)
	if err != nil {
		return nil, "", err
	}
	if len(history.Errors) == 0 {
		return nil, "", shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Import %s has no row errors", historyID))
	}

	rows := make([][]any, len(history.Errors))
	for i, e := range history.Errors {
		rows[i] = []any{e.RowNumber, strings.Join(e.Entries, "; ")}
	}
	data, err := spreadsheet.NewWriter("Errors", errorReportColumns).Write(rows)
	if err != nil {
		return nil, "", err
	}

	fileName := fmt.Sprintf("import_errors_%s_%s.xlsx", history.Entity, history.ID.String()[:8])
	return data, fileName, nil
}

// GetPendingImports retrieves imports that never reached a terminal state
func (s *ImportHistoryService) GetPendingImports(ctx context.Context) ([]*bulk.ImportHistory, error) {
	return s.historyRepo.FindUnfinished(ctx)
}
