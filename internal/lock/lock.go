// Package lock provides the mutual exclusion used by batch jobs so that two
// overlapping runs for the same key never work on the same records.
package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker acquires named, expiring locks.
type Locker interface {
	// Acquire returns ok=false without error when the key is already held.
	// The returned release func is safe to call once the work is done.
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Noop grants every lock. It is used when Redis is not configured.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX and a TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed locker. Keys are namespaced by prefix.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Acquire sets the key if absent. The lock expires after the TTL even when
// release is never called.
func (l *Redis) Acquire(ctx context.Context, key string) (func(), bool, error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the caller's context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}
	return release, true, nil
}
