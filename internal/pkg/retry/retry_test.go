package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/retry"
)

func TestRetry_Success_FirstAttempt(t *testing.T) {
	// Arrange
	ctx := context.Background()
	config := retry.DefaultConfig()
	attemptCount := 0

	fn := func(ctx context.Context) error {
		attemptCount++
		return nil
	}

	// Act
	err := retry.Do(ctx, config, fn)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 1, attemptCount)
}

func TestRetry_Success_AfterRetries(t *testing.T) {
	// Arrange
	ctx := context.Background()
	config := retry.Config{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond * 10,
		MaxInterval:     time.Millisecond * 100,
		Multiplier:      2.0,
	}
	attemptCount := 0
	failUntil := 3

	fn := func(ctx context.Context) error {
		attemptCount++
		if attemptCount < failUntil {
			return errors.New("connection refused")
		}
		return nil
	}

	// Act
	err := retry.Do(ctx, config, fn)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, failUntil, attemptCount)
}

func TestRetry_Failure_MaxAttemptsReached(t *testing.T) {
	// Arrange
	ctx := context.Background()
	config := retry.Config{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond * 10,
		MaxInterval:     time.Millisecond * 100,
		Multiplier:      2.0,
	}
	attemptCount := 0
	persistentErr := errors.New("connection reset by peer")

	fn := func(ctx context.Context) error {
		attemptCount++
		return persistentErr
	}

	// Act
	err := retry.Do(ctx, config, fn)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, retry.ErrMaxRetriesExceeded))
	assert.True(t, errors.Is(err, persistentErr))
	assert.Equal(t, 3, attemptCount)
}

func TestRetry_NonRetryableErrorFailsFast(t *testing.T) {
	// Arrange
	ctx := context.Background()
	config := retry.Config{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond * 10,
		MaxInterval:     time.Millisecond * 100,
		Multiplier:      2.0,
	}
	attemptCount := 0
	fatalErr := errors.New("duplicate key error")

	fn := func(ctx context.Context) error {
		attemptCount++
		return fatalErr
	}

	// Act
	err := retry.Do(ctx, config, fn)

	// Assert
	assert.Equal(t, fatalErr, err)
	assert.Equal(t, 1, attemptCount)
}

func TestRetry_ContextCanceled(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	config := retry.Config{
		MaxAttempts:     10,
		InitialInterval: time.Millisecond * 50,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}
	attemptCount := 0

	fn := func(ctx context.Context) error {
		attemptCount++
		if attemptCount == 1 {
			cancel()
		}
		return errors.New("connection refused")
	}

	// Act
	err := retry.Do(ctx, config, fn)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attemptCount)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, retry.IsRetryable(nil))
	assert.False(t, retry.IsRetryable(errors.New("duplicate key")))
	assert.True(t, retry.IsRetryable(errors.New("connection refused")))
	assert.True(t, retry.IsRetryable(errors.New("server selection error: context deadline exceeded")))
	assert.True(t, retry.IsRetryable(context.DeadlineExceeded))
}

func TestDoWithValue_ReturnsResult(t *testing.T) {
	// Arrange
	ctx := context.Background()
	config := retry.Config{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond * 10,
		MaxInterval:     time.Millisecond * 100,
		Multiplier:      2.0,
	}
	attemptCount := 0

	fn := func(ctx context.Context) (int, error) {
		attemptCount++
		if attemptCount < 2 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	}

	// Act
	result, err := retry.DoWithValue(ctx, config, fn)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, attemptCount)
}
