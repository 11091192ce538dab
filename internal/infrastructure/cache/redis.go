package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// Config는 Redis 클라이언트 설정입니다
type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient는 새로운 Redis 클라이언트를 생성하고 연결을 확인합니다
func NewClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info(ctx, "connected to redis", logger.Field("address", cfg.Address))
	return client, nil
}

// RateLimiter는 고정 윈도우 기반 속도 제한기입니다
type RateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRateLimiter는 새로운 속도 제한기를 생성합니다
func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local current = tonumber(redis.call('GET', key) or "0")

	if current < limit then
		redis.call('INCR', key)
		if current == 0 then
			redis.call('EXPIRE', key, window)
		end
		return 1
	else
		return 0
	end
`)

// Allow는 요청을 허용할지 확인합니다.
// Redis 장애 시에는 요청을 허용하고 경고만 남깁니다.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	fullKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	result, err := allowScript.Run(ctx, rl.client, []string{fullKey}, limit, int64(window.Seconds())).Int64()
	if err != nil {
		logger.Warn(ctx, "rate limiter unavailable, allowing request",
			logger.Field("key", key),
			zap.Error(err),
		)
		return true, err
	}

	return result == 1, nil
}
