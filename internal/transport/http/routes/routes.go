package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/infra/config"
	"github.com/arklim/medportal-api/internal/transport/http/handlers"
	"github.com/arklim/medportal-api/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Auth        handlers.Authenticator
	Identity    handlers.IdentityManager
	Database    DatabaseChecker
	Cache       CacheChecker
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
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	checks := make(map[string]handlers.HealthChecker, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if deps.Auth == nil || deps.Identity == nil {
		return r
	}

	authMiddleware := middleware.RequireAuth(deps.Auth)

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Identity)
	authHandler.RegisterRoutes(r.Group("/auth"), handlers.AuthRouteOptions{
		RequireAuth: authMiddleware,
		Login:       rateLimit(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
		Register:    rateLimit(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
	})

	api := r.Group("/api/v1")
	{
		usersHandler := handlers.NewUsersHandler(deps.Identity)
		usersHandler.RegisterRoutes(api.Group("/users"), handlers.UsersRouteOptions{
			RequireAuth:    authMiddleware,
			ForgotPassword: rateLimit(deps, "forgot_password_ip", deps.Config.RateLimit.ForgotPasswordMaxAttempts),
		})
	}

	return r
}

func rateLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
