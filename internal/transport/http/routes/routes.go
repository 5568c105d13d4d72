package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/handlers"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	LoginCodes    handlers.LoginCodeFlow
	PasswordLogin handlers.PasswordLogin
	Tokens        handlers.ConfirmationTokens
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	// IPBucket guards every /api/v1/auth route per client IP.
	IPBucket    middleware.Bucket
	AuthMetrics *telemetry.AuthMetrics
	HTTPMetrics *middleware.HTTPMetrics
	// Gatherer backs /metrics. Defaults to the prometheus default gatherer.
	Gatherer prometheus.Gatherer
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// ClientIP keys the per IP buckets, so forwarded headers are only honoured from known proxies.
	var proxies []string
	if deps.Config != nil {
		proxies = deps.Config.App.TrustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		if deps.Logger != nil {
			deps.Logger.Error("invalid trusted proxies, trusting none", zap.Error(err))
		}
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger, "/healthz", "/readyz", "/metrics"))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		if deps.IPBucket != nil {
			authGroup.Use(middleware.BucketLimiter(deps.IPBucket, middleware.ClientIPIdentifier(), deps.AuthMetrics, deps.Logger))
		}

		loginHandler := handlers.NewLoginHandler(deps.Services.LoginCodes, deps.Services.PasswordLogin)
		loginHandler.RegisterRoutes(authGroup)

		if deps.Services.Tokens != nil {
			serviceToken := ""
			if deps.Config != nil {
				serviceToken = deps.Config.Secret.ServiceToken
			}

			serviceGroup := api.Group("")
			if deps.IPBucket != nil {
				serviceGroup.Use(middleware.BucketLimiter(deps.IPBucket, middleware.ClientIPIdentifier(), deps.AuthMetrics, deps.Logger))
			}
			serviceGroup.Use(middleware.RequireServiceToken(serviceToken))

			tokenHandler := handlers.NewTokenHandler(deps.Services.Tokens)
			tokenHandler.RegisterRoutes(serviceGroup)
		}
	}

	return r
}
