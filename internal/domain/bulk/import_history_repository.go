package bulk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ImportHistoryFilter defines the filters for querying import histories
type ImportHistoryFilter struct {
	Entity      *ImportEntity
	Status      *ImportStatus
	ImportedBy  string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

// ImportHistoryListResult represents a paginated list of import histories
type ImportHistoryListResult struct {
	Items      []*ImportHistory `json:"items"`
	TotalCount int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// ImportHistoryRepository defines the interface for import history persistence
type ImportHistoryRepository interface {
	// FindByID finds an import history by ID
	FindByID(ctx context.Context, id uuid.UUID) (*ImportHistory, error)

	// FindAll returns import histories with pagination and filtering, newest first
	FindAll(ctx context.Context, filter ImportHistoryFilter, page, pageSize int) (*ImportHistoryListResult, error)

	// FindUnfinished returns pending or processing imports, oldest first
	FindUnfinished(ctx context.Context) ([]*ImportHistory, error)

	// Save saves an import history (create or update)
	Save(ctx context.Context, history *ImportHistory) error
}
