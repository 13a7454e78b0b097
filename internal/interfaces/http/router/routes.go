package router

import (
	"fmt"

	"github.com/erp/portal/internal/infrastructure/auth"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/interfaces/http/handler"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const healthPath = "/health"

// Config selects the middleware installed on the engine
type Config struct {
	Logger    *zap.Logger
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	Tracing   middleware.TracingConfig
	Meter     metric.Meter
	Profiling bool
	// JWT enables bearer authentication. Without it the actor comes from
	// the X-Portal-User header.
	JWT *auth.JWTService
	// MaxUploadSize caps workbook uploads in bytes; zero disables the cap
	MaxUploadSize int64
	// ActionLimiter rate limits sync and import actions per actor
	ActionLimiter *middleware.RateLimiter
	// Idempotency refuses replayed import submissions that carry an
	// Idempotency-Key header
	Idempotency cache.IdempotencyStore
}

// Handlers are the HTTP handlers mounted by New
type Handlers struct {
	System     *handler.SystemHandler
	Sync       *handler.SyncHandler
	Items      *handler.ItemHandler
	Partners   *handler.BusinessPartnerHandler
	Sales      *handler.SalesHandler
	Imports    *handler.ImportHandler
	Exports    *handler.ExportHandler
	References *handler.ReferenceHandler
}

// New builds the gin engine with the middleware chain and every API route
func New(cfg Config, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Secure(cfg.Security),
		middleware.CORS(cfg.CORS),
	)

	tracing := cfg.Tracing
	tracing.SkipPaths = append(tracing.SkipPaths, healthPath)
	engine.Use(middleware.Tracing(tracing), middleware.SpanEnricher())

	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, fmt.Errorf("http metrics: %w", err)
		}
		engine.Use(metrics)
	}

	if cfg.JWT != nil {
		jwtCfg := middleware.DefaultJWTConfig(cfg.JWT)
		jwtCfg.Logger = log
		engine.Use(middleware.JWTAuth(jwtCfg))
	} else {
		engine.Use(middleware.HeaderIdentity())
	}
	engine.Use(middleware.Profiling(cfg.Profiling, healthPath))

	engine.GET(healthPath, h.System.Health)

	actions := []gin.HandlerFunc{}
	if cfg.ActionLimiter != nil {
		actions = append(actions, middleware.RateLimit(cfg.ActionLimiter))
	}
	uploads := actions
	if cfg.MaxUploadSize > 0 {
		uploads = with(actions, middleware.BodyLimit(cfg.MaxUploadSize))
	}
	batches, submits := actions, uploads
	if cfg.Idempotency != nil {
		once := middleware.Idempotency(middleware.IdempotencyConfig{Store: cfg.Idempotency, Logger: log})
		batches, submits = with(actions, once), with(uploads, once)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(NewDomainGroup("system", "").
		GET(healthPath, h.System.Health))

	r.Register(NewDomainGroup("sync", "/sync").
		POST("/items", with(actions, h.Sync.SyncItems)...).
		POST("/customers", with(actions, h.Sync.SyncCustomers)...).
		POST("/suppliers", with(actions, h.Sync.SyncSuppliers)...).
		GET("/status", h.Sync.Status).
		GET("/jobs", h.Sync.Jobs).
		POST("/jobs/:entity", with(actions, h.Sync.Trigger)...))

	r.Register(NewDomainGroup("items", "/items").
		GET("", h.Items.List).
		POST("", h.Items.Create).
		GET("/:code", h.Items.Get).
		PUT("/:code", h.Items.Update).
		DELETE("/:code", h.Items.Delete))

	r.Register(NewDomainGroup("business-partners", "/business-partners").
		GET("", h.Partners.List).
		POST("", h.Partners.Create).
		GET("/:code", h.Partners.Get).
		PUT("/:code", h.Partners.Update).
		DELETE("/:code", h.Partners.Delete))

	r.Register(NewDomainGroup("requisitions", "/requisitions").
		GET("", h.Sales.ListRequisitions).
		GET("/:code", h.Sales.GetRequisition).
		DELETE("/:code", h.Sales.DeleteRequisition))

	r.Register(NewDomainGroup("supplier-quotes", "/supplier-quotes").
		GET("", h.Sales.ListSupplierQuotes).
		GET("/:code", h.Sales.GetSupplierQuote).
		DELETE("/:code", h.Sales.DeleteSupplierQuote))

	r.Register(NewDomainGroup("imports", "/imports").
		GET("", h.Imports.ListHistory).
		GET("/:id", h.Imports.GetHistory).
		GET("/:id/errors", h.Imports.DownloadErrors).
		POST("/:entity", with(submits, h.Imports.Upload)...).
		POST("/:entity/parse", with(uploads, h.Imports.Parse)...).
		POST("/:entity/batches", with(batches, h.Imports.Batch)...))

	r.Register(NewDomainGroup("exports", "/exports").
		GET("/:entity", h.Exports.Export))

	r.Register(NewDomainGroup("references", "/references").
		GET("/item-groups", h.References.ItemGroups).
		GET("/manufacturers", h.References.Manufacturers))

	r.Setup()
	return engine, nil
}

func with(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, h)
}
