package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// xlsxContentType is the media type of every workbook download
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// HandleError maps domain errors to their HTTP status. Anything else is
// logged and reported as an internal error with a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	logger.L(c.Request.Context()).Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, dto.GenericErrorMessage)
}

// Action writes an ActionResult; the status line mirrors result.Status
func (h *BaseHandler) Action(c *gin.Context, result dto.ActionResult) {
	c.JSON(result.Status, result)
}

// ActionFailed converts err into a failed ActionResult. Domain errors keep
// their message; anything else is logged and reported generically.
func (h *BaseHandler) ActionFailed(c *gin.Context, action string, err error, data any) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Action(c, dto.NewActionError(action, dto.GetHTTPStatus(code), domainErr.Message, data))
		return
	}

	logger.L(c.Request.Context()).Error("Action failed", zap.String("action", action), zap.Error(err))
	h.Action(c, dto.NewActionError(action, http.StatusInternalServerError, dto.GenericErrorMessage, data))
}

// Attachment sends data as a workbook download
func (h *BaseHandler) Attachment(c *gin.Context, fileName string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// actor returns the caller resolved by the identity middleware
func actor(c *gin.Context) string {
	return middleware.GetActor(c)
}
