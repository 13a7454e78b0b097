package handler

import (
	mdapp "github.com/erp/portal/internal/application/masterdata"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BusinessPartnerHandler handles customer and supplier master endpoints
type BusinessPartnerHandler struct {
	BaseHandler
	service *mdapp.BusinessPartnerService
}

// NewBusinessPartnerHandler creates a new BusinessPartnerHandler
func NewBusinessPartnerHandler(service *mdapp.BusinessPartnerService) *BusinessPartnerHandler {
	return &BusinessPartnerHandler{service: service}
}

// BusinessPartnerListRequest narrows the list to one card type
type BusinessPartnerListRequest struct {
	dto.ListRequest
	CardType string `form:"card_type" binding:"required"`
}

// List returns a page of partners of one card type
// GET /business-partners?card_type=C
func (h *BusinessPartnerHandler) List(c *gin.Context) {
	var req BusinessPartnerListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.service.List(c.Request.Context(), req.CardType, req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get returns one partner
// GET /business-partners/:code
func (h *BusinessPartnerHandler) Get(c *gin.Context) {
	bp, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bp)
}

// Create adds a portal partner
// POST /business-partners
func (h *BusinessPartnerHandler) Create(c *gin.Context) {
	var req mdapp.CreateBusinessPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	bp, err := h.service.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, bp)
}

// Update changes a portal partner
// PUT /business-partners/:code
func (h *BusinessPartnerHandler) Update(c *gin.Context) {
	var req mdapp.UpdateBusinessPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	bp, err := h.service.Update(c.Request.Context(), actor(c), c.Param("code"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bp)
}

// Delete soft-deletes a portal partner
// DELETE /business-partners/:code
func (h *BusinessPartnerHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actor(c), c.Param("code")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
