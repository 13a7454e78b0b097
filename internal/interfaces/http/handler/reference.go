package handler

import (
	importapp "github.com/erp/portal/internal/application/import"
	"github.com/gin-gonic/gin"
)

// ReferenceHandler serves the SAP reference lists used by item forms
type ReferenceHandler struct {
	BaseHandler
	references *importapp.ReferenceProvider
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(references *importapp.ReferenceProvider) *ReferenceHandler {
	return &ReferenceHandler{references: references}
}

// ItemGroups lists the SAP item groups
// GET /references/item-groups
func (h *ReferenceHandler) ItemGroups(c *gin.Context) {
	groups, err := h.references.ItemGroups(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, groups)
}

// Manufacturers lists the SAP manufacturers
// GET /references/manufacturers
func (h *ReferenceHandler) Manufacturers(c *gin.Context) {
	manufacturers, err := h.references.Manufacturers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, manufacturers)
}
