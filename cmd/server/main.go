package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apptax "github.com/erp/thaitax/internal/application/tax"
	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/erp/thaitax/internal/infrastructure/cache"
	"github.com/erp/thaitax/internal/infrastructure/config"
	"github.com/erp/thaitax/internal/infrastructure/event"
	"github.com/erp/thaitax/internal/infrastructure/logger"
	"github.com/erp/thaitax/internal/infrastructure/persistence"
	"github.com/erp/thaitax/internal/infrastructure/scheduler"
	"github.com/erp/thaitax/internal/infrastructure/telemetry"
	"github.com/erp/thaitax/internal/interfaces/http/handler"
	"github.com/erp/thaitax/internal/interfaces/http/middleware"
	"github.com/erp/thaitax/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	export := telemetry.ExportConfig{
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
	}

	// Ship logs to the collector alongside the console output
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		ExportConfig: export,
		Enabled:      cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		Level:        cfg.Telemetry.LogsLevel,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	otelCore, err := logProvider.ZapCore()
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log, err := logger.New(logCfg, otelCore)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Thai tax settlement engine",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		ExportConfig:  export,
		Enabled:       cfg.Telemetry.Enabled,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		ExportConfig:   export,
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log,
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meter, telemetry.DBMetricsConfig{
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	taxMetrics, err := telemetry.NewTaxMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register tax metrics", zap.Error(err))
	}

	periodicReturns := persistence.NewGormPeriodicReturnRepository(db.DB)
	repos := apptax.Repositories{
		Companies:    persistence.NewGormCompanyRepository(db.DB),
		Accounts:     persistence.NewGormAccountRepository(db.DB),
		Invoices:     persistence.NewGormInvoiceRepository(db.DB),
		Payments:     persistence.NewGormPaymentRepository(db.DB),
		Ledger:       persistence.NewGormLedgerRepository(db.DB),
		Certificates: persistence.NewGormCertificateRepository(db.DB),
		Returns:      periodicReturns,
	}
	tx := persistence.NewGormTransactor(db.DB)

	checks := map[string]handler.Pinger{"database": db}

	var sequencer tax.CertificateSequencer = persistence.NewGormCertificateSequencer(db.DB)
	var redisClient *redis.Client
	if cfg.Tax.SequenceBackend == config.SequenceBackendRedis {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		sequencer = cache.NewRedisCertificateSequencer(redisClient, "")
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Info("Certificate numbers drawn from Redis", zap.String("addr", cfg.Redis.Addr()))
	}

	// Events are delivered after commit; the reconcile queue picks up the
	// periods they touch
	bus := event.NewInMemoryEventBus(log)

	certificates := apptax.NewCertificateService(repos, tx, sequencer, bus, log,
		apptax.WithCertificatePrefix(cfg.Tax.CertificatePrefix),
		apptax.WithCertificateMetrics(taxMetrics),
	)
	settlement := apptax.NewSettlementService(repos, tx, certificates, bus, taxMetrics, log)
	reconciler := apptax.NewReconcileService(repos, tx, bus, taxMetrics, log)
	queries := apptax.NewQueryService(repos, log)

	queue, err := scheduler.NewReconcileQueue(scheduler.QueueConfig{
		Workers:       cfg.Reconciler.Workers,
		QueueSize:     cfg.Reconciler.QueueSize,
		JobTimeout:    cfg.Reconciler.JobTimeout,
		RetryAttempts: cfg.Reconciler.RetryAttempts,
		RetryDelay:    cfg.Reconciler.RetryDelay,
	}, reconciler, log)
	if err != nil {
		log.Fatal("Failed to create reconcile queue", zap.Error(err))
	}
	sweeper := scheduler.NewPeriodSweeper(cfg.Reconciler.SweepInterval, periodicReturns, queue, log)
	bus.Subscribe(apptax.NewCertificateLifecycleHandler(queue, log))

	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	if err := queue.Start(ctx); err != nil {
		log.Fatal("Failed to start reconcile queue", zap.Error(err))
	}
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start period sweeper", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled),
		middleware.SpanDecorator(),
		logger.GinMiddleware(log),
		httpMetrics,
		middleware.CORS(corsCfg),
		middleware.Secure(middleware.SecurityConfig{
			HSTSEnabled:           cfg.App.Env == "production",
			HSTSMaxAge:            31536000,
			HSTSIncludeSubdomains: true,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	router.RegisterSystemRoutes(engine, handler.NewSystemHandler(cfg.App.Name, version, checks))

	r := router.NewRouter(engine, router.WithAPIMiddleware(middleware.CompanyContext()))
	r.Register(router.SettlementGroups(router.Handlers{
		Setup:        handler.NewSetupHandler(apptax.NewSetupService(repos.Companies, repos.Accounts, log)),
		Invoices:     handler.NewInvoiceHandler(apptax.NewInvoiceService(repos.Invoices, settlement, log), queries),
		Payments:     handler.NewPaymentHandler(apptax.NewPaymentService(repos, tx, settlement, log)),
		Certificates: handler.NewCertificateHandler(certificates),
		Ledger:       handler.NewLedgerHandler(apptax.NewLedgerService(repos.Ledger, log), queries),
		TaxReturns:   handler.NewTaxReturnHandler(reconciler, queue),
	})...)
	r.Setup()

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

	// Stop intake first, then drain background work before closing stores
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping period sweeper", zap.Error(err))
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping reconcile queue", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := dbMetrics.Stop(); err != nil {
		log.Error("Error stopping database metrics", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	_ = logProvider.Shutdown(shutdownCtx)
}
