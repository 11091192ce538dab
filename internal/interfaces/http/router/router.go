package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/cache"
	httpHandler "github.com/mia-platform/crud-service-sub002/internal/interfaces/http/handler"
	"github.com/mia-platform/crud-service-sub002/internal/interfaces/http/middleware"
)

// Options는 라우터 구성 옵션입니다
type Options struct {
	Environment   string
	EnableTracing bool
	EnableMetrics bool

	// RateLimiter가 nil이면 속도 제한이 비활성화됩니다
	RateLimiter     *cache.RateLimiter
	RateLimit       int64
	RateLimitWindow time.Duration
}

// SetupRouter sets up all routes for the API server
func SetupRouter(
	crudHandler *httpHandler.CrudHandler,
	joinHandler *httpHandler.JoinHandler,
	healthHandler *httpHandler.HealthHandler,
	opts Options,
) *gin.Engine {
	if opts.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global Middlewares
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.RecoveryMiddleware())

	if opts.EnableTracing {
		router.Use(middleware.TracingMiddleware())
	}
	if opts.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}

	// ============================================
	// Health & Metrics Endpoints (no rate limit)
	// ============================================
	router.GET("/health", healthHandler.Health)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============================================
	// CRUD surface with ACL headers and rate limiting
	// ============================================
	v1 := router.Group("/v1")
	v1.Use(middleware.ACLMiddleware())
	if opts.RateLimiter != nil {
		v1.Use(middleware.RateLimit(opts.RateLimiter, opts.RateLimit, opts.RateLimitWindow))
	}
	{
		// ========================================
		// Collection CRUD
		// ========================================
		v1.GET("/:collection", crudHandler.List)
		v1.GET("/:collection/count", crudHandler.Count)
		v1.GET("/:collection/export", crudHandler.Export)
		v1.GET("/:collection/:id", crudHandler.GetByID)
		v1.POST("/:collection", crudHandler.Create)
		v1.POST("/:collection/bulk", crudHandler.CreateBulk)
		v1.POST("/:collection/import", crudHandler.Import)
		v1.PATCH("/:collection/:id", crudHandler.Patch)
		v1.PATCH("/:collection/state/:id", crudHandler.ChangeState)
		v1.DELETE("/:collection/:id", crudHandler.Delete)

		// ========================================
		// Cross-collection joins
		// ========================================
		joins := v1.Group("/join")
		{
			joins.POST("/one-to-one/:from/:to", joinHandler.OneToOne)
			joins.POST("/one-to-one/:from/:to/export", joinHandler.OneToOneExport)
			joins.POST("/one-to-many/:from/:to/export", joinHandler.OneToManyExport)
			joins.POST("/many-to-many/:from/:to/export", joinHandler.ManyToManyExport)
		}
	}

	// 등록되지 않은 경로
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httpHandler.ErrorResponse{
			Error:      http.StatusText(http.StatusNotFound),
			StatusCode: http.StatusNotFound,
			Message:    "route not found",
		})
	})

	return router
}
