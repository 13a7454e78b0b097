package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	salesapp "github.com/erp/portal/internal/application/sales"
	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRouter(f *fixture) *gin.Engine {
	h := NewSalesHandler(f.reqs, f.quotes)
	r := newEngine()
	r.GET("/requisitions", h.ListRequisitions)
	r.GET("/requisitions/:code", h.GetRequisition)
	r.DELETE("/requisitions/:code", h.DeleteRequisition)
	r.GET("/supplier-quotes", h.ListSupplierQuotes)
	r.GET("/supplier-quotes/:code", h.GetSupplierQuote)
	r.DELETE("/supplier-quotes/:code", h.DeleteSupplierQuote)
	return r
}

func TestSalesHandler_Requisitions(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	req, err := sales.NewRequisition("REQ-7", "C100", at, sales.RequisitionStatusQuoted, []sales.RequestedItem{
		{ItemCode: "A-1", Quantity: decimal.NewFromInt(4)},
	}, "jdoe", at)
	require.NoError(t, err)
	_, err = persistence.NewGormRequisitionRepository(f.db).CreateBatch(context.Background(), []*sales.Requisition{req})
	require.NoError(t, err)
	r := salesRouter(f)

	w := doJSON(t, r, http.MethodGet, "/requisitions?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Len(t, dataAs[[]salesapp.RequisitionResponse](t, resp.Data), 1)
	assert.Equal(t, 10, resp.Meta.PageSize)

	w = doJSON(t, r, http.MethodGet, "/requisitions/REQ-7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := dataAs[salesapp.RequisitionResponse](t, decodeResponse(t, w).Data)
	assert.Len(t, got.Items, 1)

	w = doJSON(t, r, http.MethodDelete, "/requisitions/REQ-7", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, "/requisitions/REQ-7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSalesHandler_SupplierQuotes(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	q, err := sales.NewSupplierQuote("SQ-3", "S200", "REQ-7", at, sales.QuoteStatusReceived, "EUR", []sales.QuoteLine{
		{ItemCode: "A-1", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("0.25"), LeadTimeDays: 14},
	}, "jdoe", at)
	require.NoError(t, err)
	_, err = persistence.NewGormSupplierQuoteRepository(f.db).CreateBatch(context.Background(), []*sales.SupplierQuote{q})
	require.NoError(t, err)
	r := salesRouter(f)

	w := doJSON(t, r, http.MethodGet, "/supplier-quotes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataAs[[]salesapp.SupplierQuoteResponse](t, decodeResponse(t, w).Data), 1)

	w = doJSON(t, r, http.MethodGet, "/supplier-quotes/SQ-3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/supplier-quotes/SQ-3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodDelete, "/supplier-quotes/SQ-3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSalesHandler_BadPaging(t *testing.T) {
	r := salesRouter(newFixture(t))

	w := doJSON(t, r, http.MethodGet, "/requisitions?page_size=1000", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
