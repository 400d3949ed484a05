package lock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/utils"
)

// releaseScript deletes the lock key only when it still carries this
// holder's token, so an expired lock re-acquired by another worker is
// never released out from under it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisLocker implements Locker over a single redis key per lock name using
// SET NX PX with a per-acquisition token.
type RedisLocker struct {
	client        *redis.Client
	logger        zerolog.Logger
	retryInterval time.Duration

	// mu guards the holder state; a locker may be shared by concurrent
	// callers (e.g. HTTP-triggered job runs)
	mu    sync.Mutex
	name  string
	token string
}

// NewRedisLocker creates a RedisLocker. retryInterval controls how often an
// acquisition attempt re-polls a contended lock within its bounded wait.
func NewRedisLocker(client *redis.Client, retryInterval time.Duration, logger zerolog.Logger) *RedisLocker {
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	return &RedisLocker{
		client:        client,
		logger:        logger,
		retryInterval: retryInterval,
	}
}

// TryAcquire implements Locker
func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl, maxWait time.Duration) (bool, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return false, utils.WrapLockError(name, err)
		}
		if ok {
			l.mu.Lock()
			l.name = name
			l.token = token
			l.mu.Unlock()
			l.logger.Debug().Str("lock", name).Dur("ttl", ttl).Msg("acquired migration lock")
			return true, nil
		}

		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, utils.WrapLockError(name, ctx.Err())
		case <-time.After(l.retryInterval):
		}
	}
}

// Release implements Locker
func (l *RedisLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	name, token := l.name, l.token
	l.name, l.token = "", ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	deleted, err := l.client.Eval(ctx, releaseScript, []string{name}, token).Int()
	if err != nil {
		return utils.WrapLockError(name, err)
	}
	if deleted == 0 {
		// TTL expired before release, or another holder took over
		l.logger.Warn().Str("lock", name).Msg("lock already expired at release")
	}
	return nil
}
