package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/erp/portal/internal/application/export"
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/gin-gonic/gin"
)

// Exporter renders workbooks
type Exporter interface {
	Export(ctx context.Context, entity bulk.ImportEntity, cardType string) (*export.File, error)
}

// ExportHandler serves workbook downloads
type ExportHandler struct {
	BaseHandler
	exporter Exporter
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exporter Exporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// Export downloads every live record of an entity in its import layout
// GET /exports/:entity?card_type=
func (h *ExportHandler) Export(c *gin.Context) {
	entity := bulk.ImportEntity(c.Param("entity"))
	if !entity.IsValid() {
		h.BadRequest(c, fmt.Sprintf("Unknown export entity: %q", c.Param("entity")))
		return
	}

	file, err := h.exporter.Export(c.Request.Context(), entity, c.Query("card_type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("X-Export-Rows", strconv.Itoa(file.Rows))
	h.Attachment(c, file.Name, file.Data)
}

var _ Exporter = (*export.Service)(nil)
