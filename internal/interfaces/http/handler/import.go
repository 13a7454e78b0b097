package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	importapp "github.com/erp/portal/internal/application/import"
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// uploadField is the multipart field carrying the workbook
const uploadField = "file"

// ImportHandler handles spreadsheet imports and their history
type ImportHandler struct {
	BaseHandler
	service    *importapp.Service
	session    *importapp.Session
	references *importapp.ReferenceProvider
	histories  *importapp.ImportHistoryService
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(
	service *importapp.Service,
	session *importapp.Session,
	references *importapp.ReferenceProvider,
	histories *importapp.ImportHistoryService,
) *ImportHandler {
	return &ImportHandler{
		service:    service,
		session:    session,
		references: references,
		histories:  histories,
	}
}

// ParseResponse is the typed content of an uploaded workbook
type ParseResponse struct {
	Entity   bulk.ImportEntity     `json:"entity"`
	FileName string                `json:"file_name"`
	Parsed   importapp.ParseResult `json:"parsed"`
}

// Parse reads an uploaded workbook into typed rows for client-driven batches
// POST /imports/:entity/parse
func (h *ImportHandler) Parse(c *gin.Context) {
	entity, ok := h.entity(c, dto.ActionImportParse)
	if !ok {
		return
	}
	fileName, data, ok := h.upload(c, dto.ActionImportParse)
	if !ok {
		return
	}

	parsed, err := importapp.Parse(entity, data)
	if err != nil {
		h.ActionFailed(c, dto.ActionImportParse, err, nil)
		return
	}
	rows, failures, total := parsed.Counts()
	msg := fmt.Sprintf("Parsed %d of %d rows", rows, total)
	if failures > 0 {
		msg += fmt.Sprintf(", %d could not be read", failures)
	}
	h.Action(c, dto.NewActionSuccess(dto.ActionImportParse, msg, ParseResponse{
		Entity:   entity,
		FileName: fileName,
		Parsed:   parsed,
	}))
}

// Batch imports one chunk. The caller sends chunks in order, each with the
// stats returned by the previous call.
// POST /imports/:entity/batches
func (h *ImportHandler) Batch(c *gin.Context) {
	entity, ok := h.entity(c, dto.ActionImportBatch)
	if !ok {
		return
	}
	switch entity {
	case bulk.ImportEntityItems:
		importBatch(h, c, h.service.ImportItems)
	case bulk.ImportEntityBusinessPartners:
		importBatch(h, c, h.service.ImportBusinessPartners)
	case bulk.ImportEntityRequisitions:
		importBatch(h, c, h.service.ImportRequisitions)
	case bulk.ImportEntitySupplierQuotes:
		importBatch(h, c, h.service.ImportSupplierQuotes)
	}
}

func importBatch[R any](h *ImportHandler, c *gin.Context, run func(context.Context, importapp.ChunkRequest[R]) importapp.ChunkResponse) {
	var req importapp.ChunkRequest[R]
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	req.Actor = actor(c)
	req.Lookups = h.references.Load(c.Request.Context())

	resp := run(c.Request.Context(), req)
	if resp.Failed() {
		h.Action(c, dto.NewActionError(dto.ActionImportBatch, http.StatusInternalServerError, resp.Message, resp))
		return
	}
	h.Action(c, dto.NewActionSuccess(dto.ActionImportBatch, resp.Message, resp))
}

// Upload runs a whole import on the server and returns its history record
// POST /imports/:entity
func (h *ImportHandler) Upload(c *gin.Context) {
	entity, ok := h.entity(c, dto.ActionImportUpload)
	if !ok {
		return
	}
	fileName, data, ok := h.upload(c, dto.ActionImportUpload)
	if !ok {
		return
	}

	history, err := h.session.Run(c.Request.Context(), importapp.Upload{
		Entity:   entity,
		FileName: fileName,
		Data:     data,
		Actor:    actor(c),
	})
	if err != nil {
		var data any
		if history != nil {
			data = history
		}
		h.ActionFailed(c, dto.ActionImportUpload, err, data)
		return
	}
	msg := fmt.Sprintf("Imported %d of %d rows", history.CompletedRows, history.TotalRows)
	h.Action(c, dto.NewActionSuccess(dto.ActionImportUpload, msg, history))
}

// ListHistory returns a page of import history records
// GET /imports?entity=&status=&imported_by=&started_from=&started_to=
func (h *ImportHandler) ListHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := importapp.ListHistoryFilter{
		Entity:     c.Query("entity"),
		Status:     c.Query("status"),
		ImportedBy: c.Query("imported_by"),
	}
	var err error
	if filter.StartedFrom, err = queryTime(c, "started_from"); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.StartedTo, err = queryTime(c, "started_to"); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.histories.ListHistory(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.TotalCount, result.Page, result.PageSize)
}

// GetHistory returns one import history record
// GET /imports/:id
func (h *ImportHandler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid import ID")
		return
	}
	history, err := h.histories.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// DownloadErrors returns the row failures of an import as a workbook
// GET /imports/:id/errors
func (h *ImportHandler) DownloadErrors(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid import ID")
		return
	}
	data, fileName, err := h.histories.ErrorsWorkbook(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Attachment(c, fileName, data)
}

func (h *ImportHandler) entity(c *gin.Context, action string) (bulk.ImportEntity, bool) {
	entity := bulk.ImportEntity(c.Param("entity"))
	if !entity.IsValid() {
		h.Action(c, dto.NewActionError(action, http.StatusBadRequest,
			fmt.Sprintf("Unknown import entity: %q", c.Param("entity")), nil))
		return "", false
	}
	return entity, true
}

// upload reads the workbook from the multipart form
func (h *ImportHandler) upload(c *gin.Context, action string) (string, []byte, bool) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Action(c, dto.NewActionError(action, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit", nil))
			return "", nil, false
		}
		h.Action(c, dto.NewActionError(action, http.StatusBadRequest, "A workbook is required in the \"file\" field", nil))
		return "", nil, false
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		h.Action(c, dto.NewActionError(action, http.StatusBadRequest, "Only .xlsx workbooks can be imported", nil))
		return "", nil, false
	}

	f, err := header.Open()
	if err != nil {
		h.ActionFailed(c, action, err, nil)
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.ActionFailed(c, action, err, nil)
		return "", nil, false
	}
	return filepath.Base(header.Filename), data, true
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (2006-01-02) or RFC 3339 timestamp", key)
}
