package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ticket-platform/internal/status"
	"ticket-platform/utils"
)

// Locker serializes work on one payment. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker serializes callers inside this process.
type LocalLocker struct {
	mu *utils.KeyedMutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{mu: utils.NewKeyedMutex()}
}

// Lock gives up when ctx is done before the key is free.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.mu.LockContext(ctx, key)
}

const redisLockPrefix = "lock:payment:"

// Deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker serializes callers across instances sharing one Redis.
type RedisLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	retry    time.Duration
	newToken func() string
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		retry:    50 * time.Millisecond,
		newToken: uuid.NewString,
	}
}

// Lock polls SETNX until the key is free, ctx is done or one TTL has passed.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = redisLockPrefix + key
	token := l.newToken()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, status.ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		slog.Warn("failed to release lock", "key", key, "error", err)
	}
}

// MultiLocker takes every lock in order and releases them in reverse.
type MultiLocker []Locker

func (m MultiLocker) Lock(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(m))
	unlock := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, l := range m {
		release, err := l.Lock(ctx, key)
		if err != nil {
			unlock()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unlock, nil
}
