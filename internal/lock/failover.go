package lock

import (
	"context"
	"errors"
	"time"

	"rentalhub/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// FailoverLocker prefers the shared primary and drops to the in-process
// fallback while the primary is failing. Row locks in the store still
// serialize writers across processes during a failover.
type FailoverLocker struct {
	primary  domain.Locker
	fallback domain.Locker
	breaker  *gobreaker.CircuitBreaker[domain.Unlocker]
	logger   *zerolog.Logger
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	l := &FailoverLocker{primary: primary, fallback: fallback, logger: logger}
	l.breaker = gobreaker.NewCircuitBreaker[domain.Unlocker](gobreaker.Settings{
		Name:        "lock-primary",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// Contention and caller cancellation say nothing about backend health.
			return err == nil || isWaitError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("lock backend breaker state changed")
		},
	})
	return l
}

func (l *FailoverLocker) Acquire(ctx context.Context, key string) (domain.Unlocker, error) {
	u, err := l.breaker.Execute(func() (domain.Unlocker, error) {
		return l.primary.Acquire(ctx, key)
	})
	if err == nil {
		return u, nil
	}
	if isWaitError(err) {
		return nil, err
	}

	if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		l.logger.Error().Err(err).Str("key", key).Msg("Primary locker failed, falling back to memory")
	}
	return l.fallback.Acquire(ctx, key)
}

// State reports the breaker state for health output.
func (l *FailoverLocker) State() gobreaker.State {
	return l.breaker.State()
}

func isWaitError(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
