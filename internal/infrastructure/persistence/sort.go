package persistence

import (
	"strings"

	"github.com/erp/portal/internal/domain/shared"
	"gorm.io/gorm/clause"
)

// defaultSortColumn is the column every list falls back to
const defaultSortColumn = "updated_at"

// sortColumns whitelists the columns a list may be ordered by. Anything
// else, including an empty or malformed name, orders by updated_at.
type sortColumns map[string]bool

// orderBy turns the filter's ordering into a quoted column clause.
// The filter is expected to be normalized, so OrderDir is "asc" or "desc".
func (c sortColumns) orderBy(filter shared.Filter) clause.OrderByColumn {
	column := strings.TrimSpace(filter.OrderBy)
	if !c[column] {
		column = defaultSortColumn
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   filter.OrderDir != "asc",
	}
}
