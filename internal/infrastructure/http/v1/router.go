// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ytsoob/internal/infrastructure/http/v1/handlers"
	"ytsoob/internal/infrastructure/http/v1/middleware"
	"ytsoob/internal/messaging/outbox"
	"ytsoob/internal/modules/posts"
	"ytsoob/pkg/logger"
)

// DefaultOperatorRole may list and requeue parked outbox records.
const DefaultOperatorRole = "admin"

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator

	Posts  *posts.Module
	Outbox outbox.Repository

	// Health checks reported by /health/ready, keyed by dependency name
	Health map[string]handlers.Checker

	OperatorRole string
	Development  bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.OperatorRole == "" {
		cfg.OperatorRole = DefaultOperatorRole
	}

	router := gin.New()

	// order matters: recovery must wrap everything, errors render last
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	base := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	{
		public := api.Group("")
		public.Use(middleware.OptionalAuth(cfg.JWTValidator))

		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		if cfg.Posts != nil {
			handlers.NewPostsHandler(base, cfg.Posts).RegisterRoutes(public, protected)
		}

		if cfg.Outbox != nil {
			operators := protected.Group("")
			operators.Use(middleware.RequireRole(cfg.OperatorRole))
			handlers.NewOutboxHandler(base, cfg.Outbox).RegisterRoutes(operators)
		}
	}

	return router
}
