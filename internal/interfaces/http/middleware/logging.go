package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// LoggingMiddleware는 HTTP 요청/응답을 로깅합니다
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		ctx := c.Request.Context()
		logLevel := logger.Info
		if statusCode >= 500 {
			logLevel = logger.Error
		} else if statusCode >= 400 {
			logLevel = logger.Warn
		}

		logLevel(ctx, "request completed",
			logger.HTTPMethod(c.Request.Method),
			logger.HTTPPath(path),
			logger.HTTPStatus(statusCode),
			logger.Duration(duration),
			logger.RemoteAddr(c.ClientIP()),
			zap.Int("response_size", c.Writer.Size()),
		)
	}
}
