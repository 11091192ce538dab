package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// RequestIDMiddleware는 각 요청에 고유 ID를 부여합니다
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		// 컨텍스트에 request ID 추가
		ctx := logger.WithFields(c.Request.Context(),
			logger.RequestID(requestID),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
