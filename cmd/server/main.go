package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/erp/refunds/docs"
	apprefund "github.com/erp/refunds/internal/application/refund"
	appvoucher "github.com/erp/refunds/internal/application/voucher"
	"github.com/erp/refunds/internal/domain/voucher"
	"github.com/erp/refunds/internal/infrastructure/auth"
	"github.com/erp/refunds/internal/infrastructure/cache"
	"github.com/erp/refunds/internal/infrastructure/config"
	"github.com/erp/refunds/internal/infrastructure/event"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/infrastructure/persistence"
	"github.com/erp/refunds/internal/infrastructure/scheduler"
	"github.com/erp/refunds/internal/infrastructure/telemetry"
	"github.com/erp/refunds/internal/interfaces/http/handler"
	"github.com/erp/refunds/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Refund Ledger API
//	@version		1.0
//	@description	Refunds against completed sales and the store-credit vouchers they issue.
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Log export runs first so every later component logs through the bridge
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	exportLevel, err := zapcore.ParseLevel(cfg.Telemetry.LogsLevel)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = loggerProvider.Bridge(log, exportLevel)

	log.Info("Starting refund ledger",
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
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.ProfilerAuthUser,
		BasicAuthPassword: cfg.Telemetry.ProfilerAuthPass,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Repositories
	refundRepo := persistence.NewGormRefundRepository(db.DB)
	voucherRepo := persistence.NewGormVoucherRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Idempotency keys are shared through Redis when it is configured
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Events
	bus := event.NewInMemoryEventBus(log)
	alerts := event.NewIntegrityAlertHandler(log)
	bus.Subscribe(event.NewIdempotentHandler(alerts, idempotencyStore, log, event.WithKeyFunc(alerts.AlertKey)))
	bus.Subscribe(event.NewLoggingEventHandler(log))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Metrics
	var ledgerMetrics *telemetry.LedgerMetrics
	var meter metric.Meter
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(cfg.Telemetry.ServiceName)
		ledgerMetrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:           meter,
			Logger:          log,
			BalanceProvider: voucherRepo,
		})
		if err != nil {
			log.Fatal("Failed to create ledger metrics", zap.Error(err))
		}
		ledgerMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer ledgerMetrics.Stop()
	}

	// Application services
	refundService := apprefund.NewService(refundRepo, txScope, voucher.NewRandomCodeGenerator(cfg.Voucher.CodePrefix), log, apprefund.Config{
		NumberPrefix:        cfg.Refund.NumberPrefix,
		IdempotencyTTL:      cfg.Refund.IdempotencyTTL,
		VoucherValidity:     cfg.Voucher.Validity(),
		VoucherTransferable: cfg.Voucher.IsTransferable,
	})
	refundService.SetIdempotencyStore(idempotencyStore)
	refundService.SetEventPublisher(bus)

	voucherService := appvoucher.NewService(voucherRepo, log)
	voucherService.SetEventPublisher(bus)
	auditService := appvoucher.NewAuditService(voucherRepo, log, cfg.Scheduler.IntegrityBatchSize)
	auditService.SetEventPublisher(bus)
	expirationService := appvoucher.NewExpirationService(voucherRepo, log)
	expirationService.SetEventPublisher(bus)
	if ledgerMetrics != nil {
		refundService.SetLedgerMetrics(ledgerMetrics)
		voucherService.SetLedgerMetrics(ledgerMetrics)
		auditService.SetLedgerMetrics(ledgerMetrics)
		expirationService.SetLedgerMetrics(ledgerMetrics)
	}

	// Background jobs
	expirationScheduler := scheduler.NewVoucherExpirationScheduler(expirationService, log, scheduler.IntervalConfig{
		Enabled:    cfg.Scheduler.Enabled,
		Interval:   cfg.Scheduler.ExpirationInterval,
		RunOnStart: true,
		Timeout:    cfg.Scheduler.JobTimeout,
	})
	integrityScheduler := scheduler.NewIntegrityCheckScheduler(auditService, log, scheduler.IntervalConfig{
		Enabled:  cfg.Scheduler.Enabled,
		Interval: cfg.Scheduler.IntegrityCheckInterval,
		Timeout:  cfg.Scheduler.JobTimeout,
	})
	if err := expirationScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start voucher expiration scheduler", zap.Error(err))
	}
	if err := integrityScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start integrity check scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var jwtService *auth.JWTService
	if cfg.JWT.Secret != "" {
		jwtService = auth.NewJWTService(cfg.JWT)
	}
	engine := router.NewEngine(router.Dependencies{
		Config:   cfg,
		Logger:   log,
		JWT:      jwtService,
		Meter:    meter,
		Refunds:  handler.NewRefundHandler(refundService),
		Vouchers: handler.NewVoucherHandler(voucherService, auditService, expirationService),
		System:   handler.NewSystemHandler(db, cfg.App.Name, version),
	})
	defer engine.Close()

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
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := expirationScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Voucher expiration scheduler did not stop cleanly", zap.Error(err))
	}
	if err := integrityScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Integrity check scheduler did not stop cleanly", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
