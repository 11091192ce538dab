package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// Aggregate는 파이프라인을 실행하고 결과를 모두 읽어 반환합니다
func (r *Repository) Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error) {
	start := time.Now()

	cursor, err := r.database.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		r.metrics.RecordDBOperation("aggregate", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to run aggregation",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to run aggregation")
	}
	defer cursor.Close(ctx)

	results := make([]bson.M, 0)
	if err := cursor.All(ctx, &results); err != nil {
		r.metrics.RecordDBOperation("aggregate", collection, "error", time.Since(start))
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "aggregation cursor error")
	}

	r.metrics.RecordDBOperation("aggregate", collection, "success", time.Since(start))
	return results, nil
}

// AggregateStream은 파이프라인 커서를 그대로 반환하여 스트리밍에 사용합니다.
// 호출자가 커서를 닫아야 합니다.
func (r *Repository) AggregateStream(ctx context.Context, collection string, pipeline []bson.M) (*mongo.Cursor, error) {
	cursor, err := r.database.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		logger.Error(ctx, "failed to open aggregation cursor",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to open aggregation cursor")
	}
	return cursor, nil
}
