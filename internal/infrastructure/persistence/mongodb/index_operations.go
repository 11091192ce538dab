package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// EnsureIndexes는 정의된 인덱스들을 컬렉션에 생성합니다.
// 이름이 같고 옵션이 다른 기존 인덱스는 삭제 후 다시 생성합니다.
func (r *Repository) EnsureIndexes(ctx context.Context, collection string, indexes []definition.Index) error {
	if len(indexes) == 0 {
		return nil
	}

	coll := r.database.Collection(collection)

	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, index := range indexes {
		keys := bson.D{}
		for _, field := range index.Fields {
			order := field.Order
			if order == 0 {
				order = 1
			}
			keys = append(keys, bson.E{Key: field.Name, Value: order})
		}

		opts := options.Index().SetName(index.Name)
		if index.Unique {
			opts.SetUnique(true)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: opts})
	}

	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		// 옵션 충돌이면 기존 인덱스를 제거하고 재시도합니다
		if !isIndexConflict(err) {
			return apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to create indexes")
		}

		for _, index := range indexes {
			if _, dropErr := coll.Indexes().DropOne(ctx, index.Name); dropErr != nil {
				logger.Warn(ctx, "failed to drop conflicting index",
					zap.String("collection", collection),
					zap.String("index", index.Name),
					zap.Error(dropErr),
				)
			}
		}
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to recreate indexes")
		}
	}

	logger.Info(ctx, "indexes ensured",
		zap.String("collection", collection),
		zap.Int("count", len(indexes)),
	)
	return nil
}

func isIndexConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// IndexOptionsConflict(85), IndexKeySpecsConflict(86)
		return cmdErr.Code == 85 || cmdErr.Code == 86
	}
	return false
}
