package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/metrics"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/retry"
)

// Config는 MongoDB 설정입니다
type Config struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	MaxConnecting  uint64
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// Repository는 MongoDB 기반 문서 저장소입니다.
// 컬렉션 정의 레지스트리가 결정한 스토리지 이름으로 컬렉션에 접근합니다.
type Repository struct {
	client   *mongo.Client
	database *mongo.Database
	metrics  *metrics.Metrics
}

// NewRepository는 새로운 MongoDB 저장소를 생성합니다
func NewRepository(ctx context.Context, cfg *Config) (*Repository, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnecting(cfg.MaxConnecting).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.Timeout).
		SetReadPreference(readpref.Primary())

	var client *mongo.Client
	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		var connectErr error
		client, connectErr = mongo.Connect(connectCtx, clientOptions)
		if connectErr != nil {
			return connectErr
		}
		return client.Ping(connectCtx, readpref.Primary())
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseConnection, "failed to connect to MongoDB")
	}

	logger.Info(ctx, "connected to MongoDB", logger.Field("database", cfg.Database))

	return &Repository{
		client:   client,
		database: client.Database(cfg.Database),
		metrics:  metrics.GetMetrics(),
	}, nil
}

// Database는 내부 데이터베이스 핸들을 반환합니다
func (r *Repository) Database() *mongo.Database {
	return r.database
}

// Collection은 스토리지 이름으로 컬렉션 핸들을 반환합니다
func (r *Repository) Collection(name string) *mongo.Collection {
	return r.database.Collection(name)
}

// HealthCheck는 저장소의 상태를 확인합니다
func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseConnection, "MongoDB ping failed")
	}
	return nil
}

// Close는 MongoDB 연결을 종료합니다
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
