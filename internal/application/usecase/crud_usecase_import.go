package usecase

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/tracing"
	"github.com/mia-platform/crud-service-sub002/internal/stream"
)

// Import는 파서가 내놓는 레코드 스트림을 배치 단위로 적재합니다.
// 배치 실패 시 마지막으로 커밋된 레코드 위치가 에러 메타데이터에
// 포함됩니다.
func (uc *CrudUseCase) Import(ctx context.Context, endpoint string, parser stream.Parser, acl dto.AccessControl) (*dto.ImportResult, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.Import")
	defer span.End()
	tracing.SetAttributes(ctx, attribute.String("endpoint", endpoint))

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	sink, err := stream.NewBatchSink(uc.batchSize, func(ctx context.Context, batch []map[string]interface{}) error {
		documents := make([]interface{}, 0, len(batch))
		for _, record := range batch {
			document, err := uc.prepareInsert(ctx, endpoint, coll, caster, record, acl)
			if err != nil {
				uc.metrics.RecordImportBatch(endpoint, "error", len(batch))
				return err
			}
			documents = append(documents, document)
		}

		if _, err := uc.repo.InsertMany(ctx, storage, documents); err != nil {
			uc.metrics.RecordImportBatch(endpoint, "error", len(batch))
			return err
		}

		uc.metrics.RecordImportBatch(endpoint, "success", len(batch))
		return nil
	})
	if err != nil {
		return nil, err
	}

	for {
		record, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, err
		}
		if err := sink.Write(ctx, record); err != nil {
			tracing.RecordError(ctx, err)
			logger.Error(ctx, "import batch failed",
				logger.Collection(endpoint),
				logger.Count(sink.Flushed()),
				zap.Error(err),
			)
			return nil, err
		}
	}

	if err := sink.Close(ctx); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	logger.Info(ctx, "import completed",
		logger.Collection(endpoint),
		logger.Count(sink.Flushed()),
	)
	return &dto.ImportResult{Imported: int64(sink.Flushed())}, nil
}
