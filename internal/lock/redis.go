package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ErrLockTimeout is returned when the key could not be acquired before ctx
// was done.
var ErrLockTimeout = errors.New("lock: timed out waiting for key")

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	// Prefix is prepended to every key.
	Prefix string
	// TTL bounds how long a crashed holder can block a key.
	TTL time.Duration
	// RetryInterval is the delay between two acquisition attempts.
	RetryInterval time.Duration
}

// Redis is a Locker shared by every instance that talks to the same Redis.
// It uses SET NX PX with a random token per holder.
type Redis struct {
	client redis.Cmdable
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.Cmdable, cfg RedisConfig, logger *slog.Logger) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "storefront:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	return &Redis{client: client, cfg: cfg, logger: logger}
}

// Lock polls SET NX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.cfg.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return r.unlockFunc(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlockFunc(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release anyway.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("failed to release lock",
					slog.String("key", redisKey),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}
