package shared

import "strings"

// Filter represents list query options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "updated_at",
		OrderDir: "desc",
	}
}

// Normalize clamps paging values and falls back to defaults for empty fields
func (f Filter) Normalize() Filter {
	d := DefaultFilter()
	if f.Page < 1 {
		f.Page = d.Page
	}
	if f.PageSize < 1 {
		f.PageSize = d.PageSize
	}
	if f.PageSize > 200 {
		f.PageSize = 200
	}
	if f.OrderBy == "" {
		f.OrderBy = d.OrderBy
	}
	if !strings.EqualFold(f.OrderDir, "asc") {
		f.OrderDir = "desc"
	} else {
		f.OrderDir = "asc"
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Offset returns the row offset of the filter's page
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
