package stream

import (
	"context"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// BatchProcessor는 가득 찬 배치를 비동기적으로 처리합니다
type BatchProcessor func(ctx context.Context, batch []map[string]interface{}) error

// BatchSink는 배압을 인지하는 배치 싱크입니다. 들어오는 레코드를
// 버퍼링하다가 크기 임계치에 도달하거나 스트림이 끝나면 호출자가 제공한
// 배치 프로세서로 flush합니다.
//
// flush를 유발한 Write는 프로세서가 완료될 때까지 반환하지 않으므로
// 배치는 도착 순서대로, 한 번에 하나씩만 처리 중입니다.
type BatchSink struct {
	batchSize int
	process   BatchProcessor
	buffer    []map[string]interface{}
	flushed   int
	failed    bool
}

// NewBatchSink는 새로운 배치 싱크를 생성합니다.
// 배치 프로세서가 없으면 즉시 실패합니다.
func NewBatchSink(batchSize int, process BatchProcessor) (*BatchSink, error) {
	if process == nil {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "BatchSink requires an async batch processor")
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchSink{
		batchSize: batchSize,
		process:   process,
		buffer:    make([]map[string]interface{}, 0, batchSize),
	}, nil
}

// Write는 레코드를 버퍼에 추가합니다. 버퍼가 임계치에 도달하면 전체 배치를
// flush하고 완료를 기다립니다. 프로세서의 실패는 종료 에러로 전파되며,
// 이미 flush된 이전 배치들은 커밋된 채로 남습니다.
func (s *BatchSink) Write(ctx context.Context, record map[string]interface{}) error {
	if s.failed {
		return apperrors.New(apperrors.ErrCodeIngestionBatch, "sink already failed")
	}

	s.buffer = append(s.buffer, record)
	if len(s.buffer) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

// Close는 스트림 종료를 알립니다. 버퍼에 남은 레코드가 있으면 마지막
// flush를 수행합니다.
func (s *BatchSink) Close(ctx context.Context) error {
	if s.failed {
		return apperrors.New(apperrors.ErrCodeIngestionBatch, "sink already failed")
	}
	if len(s.buffer) == 0 {
		return nil
	}
	return s.flush(ctx)
}

// Flushed는 지금까지 성공적으로 flush된 레코드 수를 반환합니다.
// 실패 시 마지막으로 커밋된 레코드 위치를 보고하는 데 쓰입니다.
func (s *BatchSink) Flushed() int {
	return s.flushed
}

func (s *BatchSink) flush(ctx context.Context) error {
	batch := s.buffer
	s.buffer = make([]map[string]interface{}, 0, s.batchSize)

	if err := s.process(ctx, batch); err != nil {
		s.failed = true
		return apperrors.Wrap(err, apperrors.ErrCodeIngestionBatch, "batch processing failed").
			WithMetadata("last_committed_record", s.flushed)
	}
	s.flushed += len(batch)
	return nil
}
