package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	importapp "github.com/erp/portal/internal/application/import"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceRouter(src importapp.ReferenceSource) *gin.Engine {
	h := NewReferenceHandler(importapp.NewReferenceProvider(src, cache.NewMemoryTagCache(time.Minute), nil))
	r := newEngine()
	r.GET("/references/item-groups", h.ItemGroups)
	r.GET("/references/manufacturers", h.Manufacturers)
	return r
}

func TestReferenceHandler(t *testing.T) {
	r := referenceRouter(newReferenceSource())

	w := doJSON(t, r, http.MethodGet, "/references/item-groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	groups := dataAs[[]masterdata.ItemGroup](t, decodeResponse(t, w).Data)
	assert.Len(t, groups, 2)

	w = doJSON(t, r, http.MethodGet, "/references/manufacturers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []masterdata.Manufacturer{{Code: 7, Name: "Murata"}},
		dataAs[[]masterdata.Manufacturer](t, decodeResponse(t, w).Data))
}

func TestReferenceHandler_SourceDown(t *testing.T) {
	r := referenceRouter(&staticReferences{err: shared.WrapDomainError("UNAVAILABLE", "SAP is unreachable", errors.New("timeout"))})

	w := doJSON(t, r, http.MethodGet, "/references/item-groups", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
