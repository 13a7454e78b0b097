package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	importapp "github.com/erp/portal/internal/application/import"
	mdapp "github.com/erp/portal/internal/application/masterdata"
	salesapp "github.com/erp/portal/internal/application/sales"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type staticReferences struct {
	groups        []masterdata.ItemGroup
	manufacturers []masterdata.Manufacturer
	err           error
}

func (s *staticReferences) ItemGroups(context.Context) ([]masterdata.ItemGroup, error) {
	return s.groups, s.err
}

func (s *staticReferences) Manufacturers(context.Context) ([]masterdata.Manufacturer, error) {
	return s.manufacturers, s.err
}

func newReferenceSource() *staticReferences {
	return &staticReferences{
		groups:        []masterdata.ItemGroup{{Code: 100, Name: "Items"}, {Code: 105, Name: "Capacitors"}},
		manufacturers: []masterdata.Manufacturer{{Code: 7, Name: "Murata"}},
	}
}

// fixture wires the real services over an in-memory database
type fixture struct {
	db         *gorm.DB
	cache      *cache.MemoryTagCache
	references *importapp.ReferenceProvider
	items      *mdapp.ItemService
	partners   *mdapp.BusinessPartnerService
	reqs       *salesapp.RequisitionService
	quotes     *salesapp.SupplierQuoteService
	imports    *importapp.Service
	session    *importapp.Session
	histories  *importapp.ImportHistoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:          logger.Default.LogMode(logger.Silent),
		CreateBatchSize: persistence.CreateBatchSize,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	c := cache.NewMemoryTagCache(time.Minute)
	itemRepo := persistence.NewGormItemRepository(db)
	partnerRepo := persistence.NewGormBusinessPartnerRepository(db)
	reqRepo := persistence.NewGormRequisitionRepository(db)
	quoteRepo := persistence.NewGormSupplierQuoteRepository(db)
	historyRepo := persistence.NewGormImportHistoryRepository(db)

	f := &fixture{db: db, cache: c}
	f.references = importapp.NewReferenceProvider(newReferenceSource(), c, nil)
	f.items = mdapp.NewItemService(itemRepo, c, f.references, nil)
	f.partners = mdapp.NewBusinessPartnerService(partnerRepo, c, nil)
	f.reqs = salesapp.NewRequisitionService(reqRepo, c, nil)
	f.quotes = salesapp.NewSupplierQuoteService(quoteRepo, c, nil)
	f.imports = importapp.NewService(itemRepo, partnerRepo, reqRepo, quoteRepo, c)
	f.session = importapp.NewSession(f.imports, f.references, historyRepo, nil, importapp.SessionConfig{ChunkSize: 2}, nil)
	f.histories = importapp.NewImportHistoryService(historyRepo)
	return f
}

// newEngine returns an engine with the identity middleware the router installs
func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HeaderIdentity())
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, "jdoe")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doUpload(t *testing.T, r http.Handler, path, fileName string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadField, fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.ActorHeader, "jdoe")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) dto.ActionResult {
	t.Helper()
	var resp dto.ActionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// dataAs re-decodes the data field of a response into T
func dataAs[T any](t *testing.T, data any) T {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
