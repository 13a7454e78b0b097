package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound, "Resource not found"},
		{"already exists", shared.NewDomainError("ALREADY_EXISTS", "Item \"A\" already exists"), http.StatusConflict, dto.ErrCodeAlreadyExists, "Item \"A\" already exists"},
		{"invalid input", shared.NewDomainError("INVALID_INPUT", "bad card type"), http.StatusBadRequest, dto.ErrCodeInvalidInput, "bad card type"},
		{"unavailable", shared.NewDomainError("UNAVAILABLE", "SAP is unreachable"), http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "SAP is unreachable"},
		{"wrapped domain error", shared.WrapDomainError("INVALID_STATE", "synced items are read only", errors.New("x")), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "synced items are read only"},
		{"plain error hides details", errors.New("pq: connection refused"), http.StatusInternalServerError, dto.ErrCodeInternal, dto.GenericErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h BaseHandler
			r := newEngine()
			r.GET("/", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doJSON(t, r, http.MethodGet, "/", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_ActionFailed(t *testing.T) {
	var h BaseHandler
	r := newEngine()
	r.GET("/domain", func(c *gin.Context) {
		h.ActionFailed(c, dto.ActionImportUpload, shared.NewDomainError("IMPORT_FAILED", "Import stopped"), map[string]int{"completed": 4})
	})
	r.GET("/plain", func(c *gin.Context) {
		h.ActionFailed(c, dto.ActionSyncItems, errors.New("dial tcp: timeout"), nil)
	})

	w := doJSON(t, r, http.MethodGet, "/domain", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	result := decodeAction(t, w)
	assert.True(t, result.Error)
	assert.Equal(t, http.StatusUnprocessableEntity, result.Status)
	assert.Equal(t, "Import stopped", result.Message)
	assert.Equal(t, dto.ActionImportUpload, result.Action)
	assert.Equal(t, map[string]any{"completed": float64(4)}, result.Data)

	w = doJSON(t, r, http.MethodGet, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	result = decodeAction(t, w)
	assert.True(t, result.Error)
	assert.Equal(t, dto.GenericErrorMessage, result.Message)
	assert.Nil(t, result.Data)
}

func TestBaseHandler_Attachment(t *testing.T) {
	var h BaseHandler
	r := newEngine()
	r.GET("/", func(c *gin.Context) { h.Attachment(c, "items_20261017.xlsx", []byte("PK")) })

	w := doJSON(t, r, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="items_20261017.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK", w.Body.String())
}
