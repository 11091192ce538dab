package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/persistence/mongodb"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/vault"
)

// HealthHandler는 헬스체크 핸들러입니다
type HealthHandler struct {
	repo        *mongodb.Repository
	redisClient *redis.Client
	vaultClient *vault.Client
	version     string
}

// NewHealthHandler는 새로운 HealthHandler를 생성합니다.
// redisClient와 vaultClient는 구성되지 않았으면 nil일 수 있습니다.
func NewHealthHandler(repo *mongodb.Repository, redisClient *redis.Client, vaultClient *vault.Client, version string) *HealthHandler {
	return &HealthHandler{
		repo:        repo,
		redisClient: redisClient,
		vaultClient: vaultClient,
		version:     version,
	}
}

// HealthResponse는 헬스체크 응답입니다
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthCheck는 개별 의존성 체크 결과입니다
type HealthCheck struct {
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration_ms"`
}

// Health godoc
// @Summary      Health check
// @Description  Check the health of the service and its dependencies
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]HealthCheck{
		"mongodb": runCheck(func() error { return h.repo.HealthCheck(ctx) }),
	}
	if h.redisClient != nil {
		checks["redis"] = runCheck(func() error { return h.redisClient.Ping(ctx).Err() })
	}
	if h.vaultClient != nil {
		checks["vault"] = runCheck(func() error { return h.vaultClient.HealthCheck(ctx) })
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for name, check := range checks {
		if check.Status != "healthy" {
			// MongoDB 없이는 동작할 수 없습니다
			if name == "mongodb" {
				status = "unhealthy"
				httpStatus = http.StatusServiceUnavailable
				break
			}
			status = "degraded"
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    checks,
	})
}

// Liveness는 프로세스 생존 확인용입니다
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func runCheck(check func() error) HealthCheck {
	start := time.Now()
	if err := check(); err != nil {
		return HealthCheck{
			Status:   "unhealthy",
			Message:  err.Error(),
			Duration: float64(time.Since(start).Milliseconds()),
		}
	}
	return HealthCheck{
		Status:   "healthy",
		Duration: float64(time.Since(start).Milliseconds()),
	}
}
