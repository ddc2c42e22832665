package router

import (
	"github.com/erp/refunds/internal/infrastructure/auth"
	"github.com/erp/refunds/internal/infrastructure/config"
	"github.com/erp/refunds/internal/infrastructure/logger"
	"github.com/erp/refunds/internal/interfaces/http/handler"
	"github.com/erp/refunds/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// HealthPath is served outside the versioned API and never needs an actor
const HealthPath = "/health"

// SwaggerPath serves the API description and UI
const SwaggerPath = "/swagger/*any"

// Dependencies are the collaborators the HTTP engine is built from
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	JWT      *auth.JWTService // nil disables bearer tokens
	Meter    metric.Meter     // nil disables HTTP metrics
	Refunds  *handler.RefundHandler
	Vouchers *handler.VoucherHandler
	System   *handler.SystemHandler
}

// Engine is the configured gin engine plus the resources it owns
type Engine struct {
	*gin.Engine
	limiter *middleware.RateLimiter
}

// Close stops background work started for the engine
func (e *Engine) Close() {
	if e.limiter != nil {
		e.limiter.Stop()
	}
}

// NewEngine builds the gin engine with the full middleware chain and every route
func NewEngine(deps Dependencies) *Engine {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	cors.ExposeHeaders = []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"}

	// Order matters: the request ID must exist before anything logs, and
	// SpanEnricher reads the actor after the handler chain has run.
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.SecureWithConfig(middleware.DefaultSecurityConfig()),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanEnricher(),
	)
	if deps.Meter != nil {
		engine.Use(middleware.HTTPMetrics(deps.Meter, log))
	}

	if deps.System != nil {
		engine.GET(HealthPath, deps.System.Health)
	}

	engine.GET(SwaggerPath,
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, middleware.Actor(middleware.ActorConfig{
			JWTService: deps.JWT,
			Required:   true,
			Logger:     log,
		})),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.Actor(middleware.ActorConfig{
		JWTService: deps.JWT,
		Required:   cfg.JWT.Required,
		Logger:     log,
	}))

	e := &Engine{Engine: engine}
	var lookupLimit []gin.HandlerFunc
	if cfg.HTTP.LookupRateLimit > 0 {
		e.limiter = middleware.NewRateLimiter(cfg.HTTP.LookupRateLimit, cfg.HTTP.LookupRateWindow)
		lookupLimit = append(lookupLimit, middleware.RateLimit(e.limiter))
		log.Info("Voucher lookup rate limiting enabled",
			zap.Int("requests", cfg.HTTP.LookupRateLimit),
			zap.Duration("window", cfg.HTTP.LookupRateWindow),
		)
	}

	refunds := NewDomainGroup("refunds", "/refunds")
	refunds.POST("", deps.Refunds.Create)
	refunds.GET("", deps.Refunds.List)
	refunds.GET("/:id", deps.Refunds.Get)
	refunds.POST("/:id/approve", deps.Refunds.Approve)
	refunds.POST("/:id/complete", deps.Refunds.Complete)
	refunds.POST("/:id/cancel", deps.Refunds.Cancel)

	vouchers := NewDomainGroup("vouchers", "/vouchers")
	vouchers.GET("", deps.Vouchers.List)
	vouchers.GET("/check/:code", append(lookupLimit, deps.Vouchers.Check)...)
	vouchers.POST("/expire", deps.Vouchers.Expire)
	vouchers.POST("/audit", deps.Vouchers.Audit)
	vouchers.GET("/:id", deps.Vouchers.Get)
	vouchers.GET("/:id/history", deps.Vouchers.History)
	vouchers.POST("/:id/use", deps.Vouchers.Use)
	vouchers.POST("/:id/cancel", deps.Vouchers.Cancel)
	vouchers.POST("/:id/verify", deps.Vouchers.Verify)

	r.Register(refunds).Register(vouchers)
	if deps.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", deps.System.GetSystemInfo)
		r.Register(system)
	}
	r.Setup()

	return e
}
