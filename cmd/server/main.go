package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	exportapp "github.com/erp/portal/internal/application/export"
	importapp "github.com/erp/portal/internal/application/import"
	mdapp "github.com/erp/portal/internal/application/masterdata"
	salesapp "github.com/erp/portal/internal/application/sales"
	syncapp "github.com/erp/portal/internal/application/sync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/auth"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/sap"
	"github.com/erp/portal/internal/infrastructure/scheduler"
	"github.com/erp/portal/internal/infrastructure/storage"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"github.com/erp/portal/internal/interfaces/http/handler"
	"github.com/erp/portal/internal/interfaces/http/middleware"
	"github.com/erp/portal/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger for telemetry setup; replaced once the log bridge exists
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize OTEL logs", zap.Error(err))
	}

	var extraCores []zapcore.Core
	if logProvider.IsEnabled() {
		extraCores = append(extraCores, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting portal",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    time.Minute,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: serviceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider, logProvider, profiler)

	var meter metric.Meter
	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(serviceName)
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: meter, Logger: log})
		if err != nil {
			log.Fatal("Failed to initialize business metrics", zap.Error(err))
		}
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:          cfg.Database.DBName,
		WithVariables:   cfg.App.Env == "development",
		SlowQueryThresh: 200 * time.Millisecond,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Cache
	caches := newCaches(ctx, cfg, log)
	defer caches.close()
	tagCache := caches.tags

	// SAP Service Layer
	sapClient, err := sap.NewClient(sap.NewConfig(cfg.SAP), sap.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create SAP client", zap.Error(err))
	}
	remote := sap.NewRemoteSource(sapClient)

	// Archive storage
	var archive storage.ObjectStorage = storage.NewNopStorage()
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3ObjectStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to create object storage", zap.Error(err))
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Warn("Archive bucket is not ready", zap.Error(err))
		}
		archive = s3
	}

	// Repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	partnerRepo := persistence.NewGormBusinessPartnerRepository(db.DB)
	requisitionRepo := persistence.NewGormRequisitionRepository(db.DB)
	quoteRepo := persistence.NewGormSupplierQuoteRepository(db.DB)
	syncMetaRepo := persistence.NewGormSyncMetaRepository(db.DB)
	historyRepo := persistence.NewGormImportHistoryRepository(db.DB)

	// Application services
	references := importapp.NewReferenceProvider(remote, tagCache, log)

	syncOpts := []syncapp.Option{syncapp.WithLogger(log)}
	importOpts := []importapp.Option{importapp.WithLogger(log)}
	if businessMetrics != nil {
		syncOpts = append(syncOpts, syncapp.WithMetrics(businessMetrics))
		importOpts = append(importOpts, importapp.WithMetrics(businessMetrics))
	}
	syncService := syncapp.NewService(remote, itemRepo, partnerRepo, syncMetaRepo,
		persistence.NewGormTransactionScope(db.DB), tagCache, syncOpts...)
	itemService := mdapp.NewItemService(itemRepo, tagCache, references, log)
	partnerService := mdapp.NewBusinessPartnerService(partnerRepo, tagCache, log)
	requisitionService := salesapp.NewRequisitionService(requisitionRepo, tagCache, log)
	quoteService := salesapp.NewSupplierQuoteService(quoteRepo, tagCache, log)
	importService := importapp.NewService(itemRepo, partnerRepo, requisitionRepo, quoteRepo, tagCache, importOpts...)
	importSession := importapp.NewSession(importService, references, historyRepo, archive, importapp.SessionConfig{
		ChunkSize: cfg.Import.ChunkSize,
		MaxErrors: cfg.Import.MaxErrors,
	}, log)
	historyService := importapp.NewImportHistoryService(historyRepo)
	exportService := exportapp.NewService(itemRepo, partnerRepo, requisitionRepo, quoteRepo,
		exportapp.WithArchive(archive), exportapp.WithLogger(log))

	// Sync scheduler
	var syncJobs handler.SyncJobs
	if cfg.Sync.Enabled {
		syncScheduler := newSyncScheduler(cfg.Sync, syncService, log)
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := syncScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		syncJobs = syncScheduler
		log.Info("Sync scheduler started", zap.Duration("interval", cfg.Sync.Interval))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var jwtService *auth.JWTService
	if cfg.JWT.Enabled {
		jwtService = auth.NewJWTService(cfg.JWT)
	}
	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if caches.check != nil {
		checks["cache"] = caches.check
	}

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.Env == "production"
	engine, err := router.New(router.Config{
		Logger:   log,
		CORS:     middleware.CORSFromLists(cfg.HTTP.CORSAllowOrigins, cfg.HTTP.CORSAllowMethods, cfg.HTTP.CORSAllowHeaders),
		Security: security,
		Tracing: middleware.TracingConfig{
			ServiceName: serviceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Meter:         meter,
		Profiling:     profiler.IsEnabled(),
		JWT:           jwtService,
		MaxUploadSize: cfg.HTTP.MaxUploadSize,
		ActionLimiter: middleware.NewRateLimiter(30, time.Minute),
		Idempotency:   caches.idempotency,
	}, router.Handlers{
		System:     handler.NewSystemHandler(version, checks),
		Sync:       handler.NewSyncHandler(syncService, syncJobs),
		Items:      handler.NewItemHandler(itemService),
		Partners:   handler.NewBusinessPartnerHandler(partnerService),
		Sales:      handler.NewSalesHandler(requisitionService, quoteService),
		Imports:    handler.NewImportHandler(importService, importSession, references, historyService),
		Exports:    handler.NewExportHandler(exportService),
		References: handler.NewReferenceHandler(references),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// appCaches bundles the caches built at startup
type appCaches struct {
	tags        cache.TagCache
	idempotency cache.IdempotencyStore
	close       func()
	check       handler.HealthCheck
}

// newCaches returns the tiered Redis caches when Redis is enabled and
// process-local ones otherwise
func newCaches(ctx context.Context, cfg *config.Config, log *zap.Logger) appCaches {
	local := cache.NewMemoryTagCache(cfg.Redis.TTL)
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled, using in-memory cache")
		idem := cache.NewMemoryIdempotencyStore()
		return appCaches{
			tags:        local,
			idempotency: idem,
			close:       func() { _ = idem.Close() },
		}
	}

	redisCache, err := cache.NewRedisTagCache(ctx, cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	},
		cache.WithChannel(cfg.Redis.Channel),
		cache.WithTTL(cfg.Redis.TTL),
		cache.WithLogger(log),
	)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	tiered := cache.NewTieredTagCache(local, redisCache, redisCache, log)
	go func() {
		if err := tiered.StartInvalidationSubscription(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Cache invalidation subscription ended", zap.Error(err))
		}
	}()
	log.Info("Redis cache connected", zap.String("addr", cfg.Redis.Addr()))

	return appCaches{
		tags:        tiered,
		idempotency: cache.NewRedisIdempotencyStore(redisCache.Client(), ""),
		close: func() {
			if err := redisCache.Close(); err != nil {
				log.Error("Error closing Redis", zap.Error(err))
			}
		},
		check: func(ctx context.Context) error {
			return redisCache.Client().Ping(ctx).Err()
		},
	}
}

func newSyncScheduler(cfg config.SyncConfig, runner scheduler.SyncRunner, log *zap.Logger) *scheduler.SyncScheduler {
	schedCfg := scheduler.DefaultSyncSchedulerConfig()
	schedCfg.Interval = cfg.Interval
	if cfg.JobTimeout > 0 {
		schedCfg.JobTimeout = cfg.JobTimeout
	}
	if len(cfg.Entities) > 0 {
		schedCfg.Entities = nil
		for _, raw := range cfg.Entities {
			entity, err := masterdata.ParseSyncEntity(raw)
			if err != nil {
				log.Fatal("Invalid sync entity", zap.String("entity", raw), zap.Error(err))
			}
			schedCfg.Entities = append(schedCfg.Entities, entity)
		}
	}

	s, err := scheduler.NewSyncScheduler(schedCfg, scheduler.NewSyncServiceExecutor(runner), log)
	if err != nil {
		log.Fatal("Invalid sync scheduler configuration", zap.Error(err))
	}
	return s
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, tp, mp, lp shutdowner, profiler *telemetry.Profiler) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	for name, p := range map[string]shutdowner{"tracer": tp, "meter": mp, "logs": lp} {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Error shutting down telemetry", zap.String("provider", name), zap.Error(err))
		}
	}
}
