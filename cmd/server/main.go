package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/auth"
	"github.com/wms/shopsync/internal/infrastructure/cache"
	"github.com/wms/shopsync/internal/infrastructure/config"
	"github.com/wms/shopsync/internal/infrastructure/event"
	"github.com/wms/shopsync/internal/infrastructure/logger"
	"github.com/wms/shopsync/internal/infrastructure/migration"
	"github.com/wms/shopsync/internal/infrastructure/persistence"
	"github.com/wms/shopsync/internal/infrastructure/scheduler"
	"github.com/wms/shopsync/internal/infrastructure/shopify"
	"github.com/wms/shopsync/internal/infrastructure/storage"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"github.com/wms/shopsync/internal/interfaces/http/handler"
	"github.com/wms/shopsync/internal/interfaces/http/middleware"
	"github.com/wms/shopsync/internal/interfaces/http/router"
	"github.com/wms/shopsync/migrations"
	"go.uber.org/zap"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

// webhookRateLimit caps deliveries per integration and minute
const webhookRateLimit = 600

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry. The providers are no-ops when disabled.
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logs provider", zap.Error(err))
	}
	if lp.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(lp, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting shopsync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database with zap-backed GORM logger and query tracing
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	db, err := persistence.Open(ctx, &cfg.Database, persistence.WithLogger(gormLog), persistence.WithPlugins(dbTracing))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Database.MigrateOnStart {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Redis-backed call budget and webhook dedup, in-memory when allowed
	stores, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStores(ctx)
	if err != nil {
		log.Fatal("Failed to create stores", zap.Error(err))
	}
	defer func() {
		_ = stores.Close()
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(mp.Meter("shopsync/sync"), log)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Shopify access
	key, err := cfg.Security.DecodeKey()
	if err != nil {
		log.Fatal("Invalid token encryption key", zap.Error(err))
	}
	cipher := auth.NewTokenCipher(key)

	limiterCfg := shopify.DefaultRateLimiterConfig()
	limiterCfg.MaxCallsPerWindow = cfg.Shopify.CallLimit
	limiterCfg.Window = cfg.Shopify.CallWindow
	limiterCfg.MaxAcquireAttempts = cfg.Shopify.MaxAcquireTries
	limiter := shopify.NewRateLimiter(stores.Budget, limiterCfg, log, shopify.WithRecorder(syncMetrics))
	gateways := shopify.NewGatewayFactory(cipher, limiter, shopify.Config{
		APIVersion: cfg.Shopify.APIVersion,
		Timeout:    cfg.Shopify.RequestTimeout,
	}, log)

	archive, err := storage.NewOrderArchive(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize order archive", zap.Error(err))
	}

	// Repositories
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	mappingRepo := persistence.NewGormProductMappingRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	returnRepo := persistence.NewGormReturnRepository(db.DB)
	inboundRepo := persistence.NewGormInboundRepository(db.DB)
	inventoryReader := persistence.NewGormInventoryReader(db.DB)
	productCatalog := persistence.NewGormProductCatalog(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Application services
	opts := appintegration.SyncOptions{
		BatchSize:       cfg.Sync.BatchSize,
		FallbackDelay:   cfg.Sync.FallbackDelay,
		PriceDelay:      cfg.Sync.PriceDelay,
		MetafieldDelay:  cfg.Sync.MetafieldDelay,
		OrderLookback:   cfg.Sync.OrderLookback,
		InventoryReason: cfg.Sync.DefaultReason,
		NotifyOnImport:  cfg.Sync.NotifyOnImport,
	}
	syncLog := appintegration.NewSyncLogger(syncLogRepo, log)
	syncLog.SetSyncMetrics(syncMetrics)
	notifier := appintegration.NewLogNotifier(log)

	integrationService := appintegration.NewIntegrationService(integrationRepo, syncLog, log)
	mappingService := appintegration.NewProductMappingService(mappingRepo, integrationRepo, log)
	mappingImporter := appintegration.NewMappingImportService(mappingRepo, integrationRepo, productCatalog, log)
	inventoryService := appintegration.NewInventorySyncService(integrationRepo, mappingRepo, inventoryReader, gateways, syncLog, opts, log)
	orderService := appintegration.NewOrderImportService(integrationRepo, mappingRepo, orderRepo, gateways, notifier, archive, syncLog, opts, log)
	fulfillmentService := appintegration.NewFulfillmentSyncService(integrationRepo, mappingRepo, orderRepo, gateways, notifier, syncLog, log)
	returnsService := appintegration.NewReturnsSyncService(integrationRepo, mappingRepo, orderRepo, returnRepo, gateways, syncLog, log)
	incomingProjector := appintegration.NewIncomingProjector(integrationRepo, mappingRepo, inboundRepo, gateways, syncLog, opts, log)

	// Debounced inventory pushes triggered by stock changes
	debouncer := scheduler.NewDebounceScheduler(scheduler.DebounceConfig{
		Window:        cfg.Sync.DebounceWindow,
		RunTimeout:    cfg.Sync.RunTimeout,
		MaxConcurrent: cfg.Sync.MaxConcurrent,
	}, func(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) error {
		_, err := inventoryService.SyncInventory(ctx, integrationID, productIDs, integration.SyncTriggerEvent)
		return err
	}, scheduler.RealClock(), log)
	trigger := appintegration.NewInventorySyncTrigger(appintegration.NewMappingResolver(mappingRepo, integrationRepo), debouncer, log)

	// Outbox tasks fed by WMS events
	enqueuer := event.NewOutboxEnqueuer(db.DB, event.WithMaxRetries(cfg.Event.MaxRetries))
	registry := event.NewTaskRegistry()
	registry.MustRegister(event.WrapHandlersWithIdempotency([]shared.TaskHandler{
		appintegration.NewInventoryChangedHandler(trigger, log),
		appintegration.NewFulfillmentSyncHandler(fulfillmentService, log),
		appintegration.NewReturnSyncHandler(returnsService, log),
	}, stores.Deliveries, log, event.WithTaskRecorder(syncMetrics))...)

	var processor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		processorCfg := event.DefaultOutboxProcessorConfig()
		processorCfg.BatchSize = cfg.Event.BatchSize
		processorCfg.Workers = cfg.Event.Workers
		processorCfg.PollInterval = cfg.Event.PollInterval
		processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
		processorCfg.CleanupRetention = cfg.Event.CleanupRetention
		processor = event.NewOutboxProcessor(outboxRepo, registry, processorCfg, log)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		log.Info("Outbox processor started", zap.Strings("task_types", registry.TaskTypes()))
	}

	// Cron jobs
	cron := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{JobTimeout: cfg.Scheduler.JobTimeout}, log)
	if cfg.Scheduler.Enabled {
		jobs := []struct {
			name string
			spec string
			run  scheduler.JobFunc
		}{
			{"order-pull", cfg.Scheduler.OrderPullSchedule, orderService.SyncAllOrders},
			{"inventory-reconcile", cfg.Scheduler.ReconcileSchedule, inventoryService.ReconcileAll},
			{"incoming-projection", cfg.Scheduler.IncomingSchedule, incomingProjector.ProjectAll},
		}
		for _, job := range jobs {
			if err := cron.AddJob(job.name, job.spec, job.run); err != nil {
				log.Fatal("Failed to schedule job", zap.String("job", job.name), zap.Error(err))
			}
		}
		if err := cron.Start(ctx); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
	}

	syncMetrics.StartPeriodicCollection(ctx,
		telemetry.NewGormStatusCounter(db.DB, "integrations"),
		telemetry.NewGormStatusCounter(db.DB, "outbox_tasks"),
		time.Minute,
	)

	// Operator API authentication
	jwtService := auth.NewJWTService(cfg.JWT)
	var revocations auth.RevocationChecker = auth.NewMemoryRevocations()
	if stores.Client != nil {
		revocations = auth.NewRedisRevocations(stores.Client, cfg.JWT.RevocationPrefix)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	// Middleware order:
	// 1. Tracing - Start the request span
	// 2. Logger - Request ID and access log
	// 3. Recovery - Catch panics
	// 4. Metrics - Request counters and latency
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled, "/health"))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.HTTPMetrics(mp))
	engine.Use(middleware.Secure())

	engine.Use(middleware.CORS(cfg.HTTP.CORSAllowOrigins...))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if stores.Client != nil {
		checks["redis"] = redisCheck(stores.Client)
	}

	router.RegisterRoutes(engine, router.Handlers{
		System:      handler.NewSystemHandler(cfg.App.Name, version, checks, cron),
		Integration: handler.NewIntegrationHandler(integrationService),
		Mapping:     handler.NewProductMappingHandler(integrationService, mappingService, mappingImporter),
		Sync: handler.NewSyncHandler(handler.SyncServices{
			Integrations: integrationService,
			Inventory:    inventoryService,
			Orders:       orderService,
			Incoming:     incomingProjector,
			Fulfillment:  fulfillmentService,
			Returns:      returnsService,
		}),
		Events: handler.NewEventHandler(enqueuer),
		Outbox: handler.NewOutboxHandler(event.NewDeadLetterService(outboxRepo, log)),
		Webhook: handler.NewShopifyWebhookHandler(handler.WebhookConfig{
			Verifier:     shopify.NewWebhookVerifier(cfg.Shopify.APIKey, cfg.Shopify.APISecret),
			Integrations: integrationService,
			Orders:       orderService,
			Dedup:        stores.Deliveries,
			DedupTTL:     cfg.Shopify.WebhookDedupTTL,
			Metrics:      syncMetrics,
			Logger:       log,
		}),
	}, router.Options{
		Auth:           middleware.Authenticate(jwtService, middleware.WithRevocations(revocations), middleware.WithAuthLogger(log)),
		WebhookLimiter: middleware.RateLimit(stores.Budget, webhookRateLimit, time.Minute, middleware.ByIntegration),
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop producers before the pipelines they feed
	if err := cron.Stop(shutdownCtx); err != nil {
		log.Warn("Cron trigger did not stop cleanly", zap.Error(err))
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Warn("Outbox processor did not stop cleanly", zap.Error(err))
		}
	}
	if err := debouncer.Stop(shutdownCtx); err != nil {
		log.Warn("Debounced syncs did not finish", zap.Error(err))
	}
	syncMetrics.Stop()

	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logs":   lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry provider shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// migrate applies the migrations compiled into the binary
func migrate(db *persistence.Database, log *zap.Logger) error {
	m, err := migration.New(db.SQL(), migrations.FS, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared pool
	return m.Up()
}

func redisCheck(client *redis.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
