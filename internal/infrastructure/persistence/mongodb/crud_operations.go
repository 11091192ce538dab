package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// FindOptions는 목록 조회의 페이지징과 정렬 옵션입니다
type FindOptions struct {
	Projection bson.M
	Sort       bson.D
	Limit      int64
	Skip       int64
}

// FindAll은 필터에 맞는 문서들을 조회합니다
func (r *Repository) FindAll(ctx context.Context, collection string, filter bson.M, opts FindOptions) ([]bson.M, error) {
	start := time.Now()

	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	cursor, err := r.database.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		r.metrics.RecordDBOperation("find_all", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to find documents",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to find documents")
	}
	defer cursor.Close(ctx)

	documents := make([]bson.M, 0)
	if err := cursor.All(ctx, &documents); err != nil {
		r.metrics.RecordDBOperation("find_all", collection, "error", time.Since(start))
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "cursor error")
	}

	r.metrics.RecordDBOperation("find_all", collection, "success", time.Since(start))
	return documents, nil
}

// FindAllStream은 커서를 그대로 반환하여 스트리밍 내보내기에 사용합니다
func (r *Repository) FindAllStream(ctx context.Context, collection string, filter bson.M, opts FindOptions) (*mongo.Cursor, error) {
	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	cursor, err := r.database.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		logger.Error(ctx, "failed to open export cursor",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to open export cursor")
	}
	return cursor, nil
}

// FindOne은 필터에 맞는 문서 하나를 조회합니다
func (r *Repository) FindOne(ctx context.Context, collection string, filter bson.M, projection bson.M) (bson.M, error) {
	start := time.Now()

	findOpts := options.FindOne()
	if len(projection) > 0 {
		findOpts.SetProjection(projection)
	}

	var document bson.M
	if err := r.database.Collection(collection).FindOne(ctx, filter, findOpts).Decode(&document); err != nil {
		if err == mongo.ErrNoDocuments {
			r.metrics.RecordDBOperation("find_one", collection, "not_found", time.Since(start))
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "document not found")
		}
		r.metrics.RecordDBOperation("find_one", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to find document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to find document")
	}

	r.metrics.RecordDBOperation("find_one", collection, "success", time.Since(start))
	return document, nil
}

// Count는 필터에 맞는 문서 개수를 반환합니다
func (r *Repository) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	start := time.Now()

	count, err := r.database.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		r.metrics.RecordDBOperation("count", collection, "error", time.Since(start))
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to count documents")
	}

	r.metrics.RecordDBOperation("count", collection, "success", time.Since(start))
	return count, nil
}

// InsertOne은 문서를 삽입합니다
func (r *Repository) InsertOne(ctx context.Context, collection string, document bson.M) (interface{}, error) {
	start := time.Now()

	result, err := r.database.Collection(collection).InsertOne(ctx, document)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.metrics.RecordDBOperation("insert", collection, "conflict", time.Since(start))
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUniqueConstraint, "unique constraint violated")
		}
		r.metrics.RecordDBOperation("insert", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to insert document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to insert document")
	}

	r.metrics.RecordDBOperation("insert", collection, "success", time.Since(start))
	return result.InsertedID, nil
}

// InsertMany는 문서들을 순서대로 삽입합니다
func (r *Repository) InsertMany(ctx context.Context, collection string, documents []interface{}) ([]interface{}, error) {
	start := time.Now()

	result, err := r.database.Collection(collection).InsertMany(ctx, documents, options.InsertMany().SetOrdered(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.metrics.RecordDBOperation("insert_many", collection, "conflict", time.Since(start))
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUniqueConstraint, "unique constraint violated")
		}
		r.metrics.RecordDBOperation("insert_many", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to insert documents",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to insert documents")
	}

	r.metrics.RecordDBOperation("insert_many", collection, "success", time.Since(start))
	return result.InsertedIDs, nil
}

// FindOneAndUpdate는 문서를 갱신하고 갱신된 문서를 반환합니다
func (r *Repository) FindOneAndUpdate(ctx context.Context, collection string, filter bson.M, update bson.M, projection bson.M) (bson.M, error) {
	start := time.Now()

	updateOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if len(projection) > 0 {
		updateOpts.SetProjection(projection)
	}

	var document bson.M
	if err := r.database.Collection(collection).FindOneAndUpdate(ctx, filter, update, updateOpts).Decode(&document); err != nil {
		if err == mongo.ErrNoDocuments {
			r.metrics.RecordDBOperation("update", collection, "not_found", time.Since(start))
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "document not found")
		}
		if mongo.IsDuplicateKeyError(err) {
			r.metrics.RecordDBOperation("update", collection, "conflict", time.Since(start))
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUniqueConstraint, "unique constraint violated")
		}
		r.metrics.RecordDBOperation("update", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to update document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to update document")
	}

	r.metrics.RecordDBOperation("update", collection, "success", time.Since(start))
	return document, nil
}

// UpdateMany는 필터에 맞는 모든 문서를 갱신하고 갱신된 개수를 반환합니다
func (r *Repository) UpdateMany(ctx context.Context, collection string, filter bson.M, update bson.M) (int64, error) {
	start := time.Now()

	result, err := r.database.Collection(collection).UpdateMany(ctx, filter, update)
	if err != nil {
		r.metrics.RecordDBOperation("update_many", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to update documents",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to update documents")
	}

	r.metrics.RecordDBOperation("update_many", collection, "success", time.Since(start))
	return result.ModifiedCount, nil
}

// DeleteOne은 필터에 맞는 문서 하나를 삭제합니다
func (r *Repository) DeleteOne(ctx context.Context, collection string, filter bson.M) error {
	start := time.Now()

	result, err := r.database.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		r.metrics.RecordDBOperation("delete", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to delete document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to delete document")
	}
	if result.DeletedCount == 0 {
		r.metrics.RecordDBOperation("delete", collection, "not_found", time.Since(start))
		return apperrors.New(apperrors.ErrCodeNotFound, "document not found")
	}

	r.metrics.RecordDBOperation("delete", collection, "success", time.Since(start))
	return nil
}

// DeleteMany는 필터에 맞는 모든 문서를 삭제하고 삭제된 개수를 반환합니다
func (r *Repository) DeleteMany(ctx context.Context, collection string, filter bson.M) (int64, error) {
	start := time.Now()

	result, err := r.database.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		r.metrics.RecordDBOperation("delete_many", collection, "error", time.Since(start))
		logger.Error(ctx, "failed to delete documents",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "failed to delete documents")
	}

	r.metrics.RecordDBOperation("delete_many", collection, "success", time.Since(start))
	return result.DeletedCount, nil
}
