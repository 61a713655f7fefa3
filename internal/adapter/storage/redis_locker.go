package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stokd/supply-ingest/internal/port"
)

// releaseScript deletes the lease key only while the caller still owns it,
// so a release after TTL expiry cannot free a lease held by someone else.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker implements port.Locker with SetNX leases. TTL, wait window and
// retry interval are fixed per instance.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	maxWait       time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, maxWait, retryInterval time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		maxWait:       maxWait,
		retryInterval: retryInterval,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (port.Lease, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(r.maxWait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return &redisLease{client: r.client, key: key, token: token}, nil
		}

		if time.Now().Add(r.retryInterval).After(deadline) {
			return nil, port.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryInterval):
		}
	}
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

// Release is idempotent: once the key is gone (released or expired) the
// script is a no-op.
func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
