package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// RecoveryMiddleware는 패닉을 복구하고 500 에러를 반환합니다
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				stack := string(debug.Stack())

				ctx := c.Request.Context()
				logger.Error(ctx, "panic recovered",
					logger.HTTPMethod(c.Request.Method),
					logger.HTTPPath(c.Request.URL.Path),
					logger.RemoteAddr(c.ClientIP()),
					zap.Any("panic", err),
					zap.String("stack", stack),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      http.StatusText(http.StatusInternalServerError),
					"statusCode": http.StatusInternalServerError,
					"message":    "internal server error",
				})
			}
		}()

		c.Next()
	}
}
