package handler

import (
	salesapp "github.com/erp/portal/internal/application/sales"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// SalesHandler handles requisition and supplier quote endpoints. Both are
// created through imports only.
type SalesHandler struct {
	BaseHandler
	requisitions *salesapp.RequisitionService
	quotes       *salesapp.SupplierQuoteService
}

// NewSalesHandler creates a new SalesHandler
func NewSalesHandler(requisitions *salesapp.RequisitionService, quotes *salesapp.SupplierQuoteService) *SalesHandler {
	return &SalesHandler{requisitions: requisitions, quotes: quotes}
}

// ListRequisitions returns a page of requisitions
// GET /requisitions
func (h *SalesHandler) ListRequisitions(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	page, err := h.requisitions.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetRequisition returns one requisition with its requested items
// GET /requisitions/:code
func (h *SalesHandler) GetRequisition(c *gin.Context) {
	r, err := h.requisitions.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// DeleteRequisition removes a requisition
// DELETE /requisitions/:code
func (h *SalesHandler) DeleteRequisition(c *gin.Context) {
	if err := h.requisitions.Delete(c.Request.Context(), actor(c), c.Param("code")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListSupplierQuotes returns a page of supplier quotes
// GET /supplier-quotes
func (h *SalesHandler) ListSupplierQuotes(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	page, err := h.quotes.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetSupplierQuote returns one quote with its lines
// GET /supplier-quotes/:code
func (h *SalesHandler) GetSupplierQuote(c *gin.Context) {
	q, err := h.quotes.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, q)
}

// DeleteSupplierQuote removes a supplier quote
// DELETE /supplier-quotes/:code
func (h *SalesHandler) DeleteSupplierQuote(c *gin.Context) {
	if err := h.quotes.Delete(c.Request.Context(), actor(c), c.Param("code")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
