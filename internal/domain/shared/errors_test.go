package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load item: %w", NewDomainError("NOT_FOUND", "item A-100 not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAlreadyExists))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDomainError("UNAVAILABLE", "SAP is unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "SAP is unavailable: connection refused", err.Error())
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Page: 0, PageSize: 1000, OrderDir: "ASC", Search: "  cable "}.Normalize()

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 200, f.PageSize)
	assert.Equal(t, "asc", f.OrderDir)
	assert.Equal(t, "updated_at", f.OrderBy)
	assert.Equal(t, "cable", f.Search)
	assert.Equal(t, 0, f.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated[string](nil, 41, 2, 20)

	assert.Equal(t, 3, p.TotalPages)
	assert.NotNil(t, p.Items)
}
