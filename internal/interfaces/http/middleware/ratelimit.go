package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/cache"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// RateLimit는 IP 기반 rate limiting 미들웨어입니다.
// Redis 장애 시에는 요청을 통과시킵니다 (fail open).
func RateLimit(limiter *cache.RateLimiter, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()

		allowed, err := limiter.Allow(ctx, clientIP, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			logger.Warn(ctx, "rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.Int64("limit", limit),
				zap.Duration("window", window),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      http.StatusText(http.StatusTooManyRequests),
				"statusCode": http.StatusTooManyRequests,
				"message":    "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
