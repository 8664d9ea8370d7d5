package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}

	assert.Equal(t, 10*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 10*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 20*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 40*time.Millisecond, p.NextDelay(3))
	assert.Equal(t, 50*time.Millisecond, p.NextDelay(4))

	assert.Equal(t, 10*time.Millisecond, RetryPolicy{}.NextDelay(1))
}

func TestPoll(t *testing.T) {
	fast := RetryPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		calls := 0
		err := poll(context.Background(), time.Second, fast, func() (bool, error) {
			calls++
			return calls == 3, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Timeout", func(t *testing.T) {
		err := poll(context.Background(), 20*time.Millisecond, fast, func() (bool, error) { return false, nil })
		assert.ErrorIs(t, err, ErrLockTimeout)
	})

	t.Run("BackendError", func(t *testing.T) {
		boom := errors.New("boom")
		err := poll(context.Background(), time.Second, fast, func() (bool, error) { return false, boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := poll(ctx, time.Second, fast, func() (bool, error) { return false, nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
