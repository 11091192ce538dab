package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/stream"
)

func record(n int) map[string]interface{} {
	return map[string]interface{}{"n": n}
}

func TestNewBatchSink_RequiresProcessor(t *testing.T) {
	// Act
	_, err := stream.NewBatchSink(10, nil)

	// Assert
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires an async batch processor")
}

func TestBatchSink_FlushesAtThreshold(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var batches [][]map[string]interface{}
	sink, err := stream.NewBatchSink(3, func(ctx context.Context, batch []map[string]interface{}) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)

	// Act
	for i := 0; i < 7; i++ {
		require.NoError(t, sink.Write(ctx, record(i)))
	}

	// Assert: 임계치마다 flush, 나머지는 버퍼에 남습니다
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Equal(t, 6, sink.Flushed())
}

func TestBatchSink_CloseFlushesRemainder(t *testing.T) {
	ctx := context.Background()
	var batches [][]map[string]interface{}
	sink, err := stream.NewBatchSink(3, func(ctx context.Context, batch []map[string]interface{}) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, sink.Write(ctx, record(i)))
	}

	require.NoError(t, sink.Close(ctx))

	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, 7, sink.Flushed())
}

func TestBatchSink_CloseWithEmptyBufferIsNoop(t *testing.T) {
	ctx := context.Background()
	calls := 0
	sink, err := stream.NewBatchSink(2, func(ctx context.Context, batch []map[string]interface{}) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sink.Write(ctx, record(0)))
	require.NoError(t, sink.Write(ctx, record(1)))
	require.NoError(t, sink.Close(ctx))

	assert.Equal(t, 1, calls)
}

func TestBatchSink_ProcessorFailureIsTerminal(t *testing.T) {
	// Arrange
	ctx := context.Background()
	boom := errors.New("insert failed")
	sink, err := stream.NewBatchSink(2, func(ctx context.Context, batch []map[string]interface{}) error {
		return boom
	})
	require.NoError(t, err)

	// Act
	require.NoError(t, sink.Write(ctx, record(0)))
	err = sink.Write(ctx, record(1))

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIngestionBatch, apperrors.GetCode(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 0, appErr.Metadata["last_committed_record"])

	// 실패 이후의 쓰기와 종료도 거부됩니다
	assert.Error(t, sink.Write(ctx, record(2)))
	assert.Error(t, sink.Close(ctx))
}

func TestBatchSink_EarlierBatchesStayCommittedAfterFailure(t *testing.T) {
	ctx := context.Background()
	calls := 0
	sink, err := stream.NewBatchSink(2, func(ctx context.Context, batch []map[string]interface{}) error {
		calls++
		if calls == 2 {
			return errors.New("second batch failed")
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sink.Write(ctx, record(0)))
	require.NoError(t, sink.Write(ctx, record(1)))
	require.NoError(t, sink.Write(ctx, record(2)))
	err = sink.Write(ctx, record(3))

	require.Error(t, err)
	assert.Equal(t, 2, sink.Flushed())

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Metadata["last_committed_record"])
}

func TestBatchSink_ZeroBatchSizeDefaultsToOne(t *testing.T) {
	ctx := context.Background()
	calls := 0
	sink, err := stream.NewBatchSink(0, func(ctx context.Context, batch []map[string]interface{}) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sink.Write(ctx, record(0)))
	assert.Equal(t, 1, calls)
}
