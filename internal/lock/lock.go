package lock

import (
	"rentalhub/internal/config"
	"rentalhub/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// New picks the locker for the configured backend. The redis backend is
// wrapped with an in-process fallback.
func New(cfg config.LockingConfig, client *redis.Client, logger *zerolog.Logger) domain.Locker {
	memory := NewMemoryLocker(cfg.WaitTimeout)
	if cfg.Backend != config.LockBackendRedis || client == nil {
		return memory
	}

	retry := RetryPolicy{
		InitialDelay:  cfg.Retry.InitialDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
	}
	return NewFailoverLocker(NewRedisLocker(client, cfg.TTL, cfg.WaitTimeout, retry), memory, logger)
}
