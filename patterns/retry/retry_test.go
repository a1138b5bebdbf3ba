package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"eventcore/eventing"
)

func conflict() error { return eventing.NewDuplicatePlayheadError("acc-1", 1, 1) }

func TestDo_RetriesConflictUntilSuccess(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), Config{MaxAttempts: 3, InitialDelay: time.Microsecond, BackoffFactor: 2}, func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return conflict()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 2}, func(context.Context, int) error {
		calls++
		return conflict()
	})
	assert.ErrorIs(t, err, eventing.ErrDuplicatePlayhead)
	assert.Equal(t, 2, calls)
}

func TestDo_DoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(context.Context, int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomRetryable(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	cfg := DefaultConfig()
	cfg.Retryable = func(err error) bool { return errors.Is(err, transient) }
	err := Do(context.Background(), cfg, func(context.Context, int) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, cfg.MaxAttempts, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := Do(ctx, DefaultConfig(), func(context.Context, int) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, Config{MaxAttempts: 5, InitialDelay: time.Hour}, func(context.Context, int) error {
		cancel()
		return conflict()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Config{}, func(context.Context, int) error {
		calls++
		return conflict()
	})
	assert.Equal(t, 1, calls)
}
