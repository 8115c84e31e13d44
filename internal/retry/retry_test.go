package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(false)}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, fast()...)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	cause := errors.New("unavailable")
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return cause
	}, append(fast(), WithMaxAttempts(4))...)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 4, calls)
}

func TestDoPermanent(t *testing.T) {
	calls := 0
	cause := errors.New("syntax error")
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(cause)
	}, fast()...)
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestDoContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("flaky")
	}, WithInitialDelay(time.Second))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("x")))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("once")
		}
		return "ok", nil
	}, fast()...)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
