package retry

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cost-parker/internal/errors"
)

func fastPolicy() Policy {
	return Policy{
		BaseDelay:   time.Millisecond,
		Factor:      2,
		MaxAttempts: 3,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	var calls int32
	err := fastPolicy().Do(context.Background(), "op", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
}

func TestDo_RetriesRetryableThenSucceeds(t *testing.T) {
	var calls int32
	var notified []string
	p := fastPolicy()
	p.OnRetry = func(operation string, err error, wait time.Duration) {
		notified = append(notified, operation)
	}

	err := p.Do(context.Background(), "UpdateShardCount", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New(errors.CodeThrottled, "slow down")
		}
		return nil
	}, DefaultClassifier)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
	assert.Equal(t, []string{"UpdateShardCount", "UpdateShardCount"}, notified)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int32
	err := fastPolicy().Do(context.Background(), "DeleteEndpoint", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New(errors.CodeThrottled, "slow down")
	}, DefaultClassifier)

	require.Error(t, err)
	assert.Equal(t, int32(3), calls)
	assert.True(t, errors.Is(err, errors.CodeThrottled))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	var calls int32
	fatal := errors.New(errors.CodePlatformAuthError, "denied")
	err := fastPolicy().Do(context.Background(), "PutFunctionConcurrency", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return fatal
	}, DefaultClassifier)

	assert.Equal(t, int32(1), calls)
	assert.Same(t, fatal, err)
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	p := fastPolicy()
	p.BaseDelay = time.Hour
	p.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "op", func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return errors.New(errors.CodeUnavailable, "down")
		}, DefaultClassifier)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, stderrors.Is(err, context.Canceled))
		assert.True(t, errors.Is(err, errors.CodeCancelled))
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_CallTimeoutIsUnavailable(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 2
	p.CallTimeout = 5 * time.Millisecond

	var calls int32
	err := p.Do(context.Background(), "DescribeStreamSummary", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return ctx.Err()
	}, DefaultClassifier)

	require.Error(t, err)
	assert.Equal(t, int32(2), calls)
	assert.True(t, errors.Is(err, errors.CodeUnavailable))
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	var calls int32
	p := Policy{}
	_ = p.Do(context.Background(), "op", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New(errors.CodeThrottled, "x")
	}, nil)
	assert.Equal(t, int32(1), calls)
}

func TestDefaultClassifier(t *testing.T) {
	assert.Equal(t, Retryable, DefaultClassifier(errors.New(errors.CodeResourceBusy, "busy")))
	assert.Equal(t, Fatal, DefaultClassifier(errors.New(errors.CodeConflict, "changed")))
	assert.Equal(t, Fatal, DefaultClassifier(stderrors.New("plain")))
	assert.Equal(t, "retryable", Retryable.String())
}
