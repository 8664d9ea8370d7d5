package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rentalhub:lock:"

// ErrLockLost means the lease expired and another holder took the key.
var ErrLockLost = errors.New("lock lost before release")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// RedisLocker holds keys with SET NX PX and a random token, so several API
// processes can share one lock space.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  RetryPolicy
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, retry RetryPolicy) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: retry}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (domain.Unlocker, error) {
	if l.client == nil {
		return nil, errors.New("redis client is nil")
	}

	token := uuid.NewString()
	redisKey := keyPrefix + key

	err := poll(ctx, l.wait, l.retry, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("acquire %s: %w", key, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	return &redisLease{client: l.client, key: redisKey, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", r.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
