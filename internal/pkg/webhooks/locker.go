package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "webhooks:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type localLock struct {
	token   uint64
	expires time.Time
}

// LocalLocker serializes holders inside one process. Locks expire after their
// ttl so a stuck holder cannot block a key forever.
type LocalLocker struct {
	mu   sync.Mutex
	next uint64
	held map[string]localLock
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.held[key]; ok && now.Before(current.expires) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	l.next++
	token := l.next
	l.held[key] = localLock{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.held[key]; ok && current.token == token {
			delete(l.held, key)
		}
	}, nil
}

// RedisLocker is a single-instance Redis lock (SET NX PX with a token checked
// on release).
type RedisLocker struct {
	client   *redis.Client
	fallback *LocalLocker
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, fallback: NewLocalLocker()}
}

// Acquire returns ErrLocked when another holder owns the key. When Redis is
// unreachable the lock only covers this process.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := lockKeyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		log.Warnf("[Webhooks] Lock unavailable for %s, falling back to a local lock: %v", key, err)
		return l.fallback.Acquire(ctx, key, ttl)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}

	return func() {
		// The caller's context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil {
			log.Warnf("[Webhooks] Failed to release lock for %s: %v", key, err)
		}
	}, nil
}
