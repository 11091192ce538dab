package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/metrics"
)

// MetricsMiddleware는 Prometheus 메트릭을 수집합니다
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.GetMetrics()

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 경로 파라미터가 들어간 원시 경로 대신 라우트 패턴을 사용해
		// 카디널리티를 제한합니다
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
