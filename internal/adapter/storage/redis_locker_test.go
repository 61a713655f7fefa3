package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stokd/supply-ingest/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestAcquireRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "lock-test:acquire-release"
	client.Del(ctx, key)

	locker := NewRedisLocker(client, 30*time.Second, time.Second, 50*time.Millisecond)

	lease, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if exists, _ := client.Exists(ctx, key).Result(); exists != 1 {
		t.Error("expected lease key to exist while held")
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if exists, _ := client.Exists(ctx, key).Result(); exists != 0 {
		t.Error("expected lease key to be gone after release")
	}
}

func TestAcquire_Contention(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "lock-test:contention"
	client.Del(ctx, key)

	locker := NewRedisLocker(client, 30*time.Second, 200*time.Millisecond, 50*time.Millisecond)

	lease, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer lease.Release(ctx)

	_, err = locker.Acquire(ctx, key)
	if !errors.Is(err, port.ErrLockNotAcquired) {
		t.Errorf("expected ErrLockNotAcquired, got: %v", err)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "lock-test:waits"
	client.Del(ctx, key)

	locker := NewRedisLocker(client, 30*time.Second, time.Second, 20*time.Millisecond)

	lease, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		lease.Release(context.Background())
	}()

	second, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("expected second Acquire to succeed after release: %v", err)
	}
	second.Release(ctx)
}

func TestRelease_Idempotent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "lock-test:idempotent"
	client.Del(ctx, key)

	locker := NewRedisLocker(client, 30*time.Second, time.Second, 50*time.Millisecond)

	lease, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Errorf("second Release should be a no-op: %v", err)
	}
}

func TestRelease_DoesNotStealExpiredLease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "lock-test:expired"
	client.Del(ctx, key)

	short := NewRedisLocker(client, 50*time.Millisecond, time.Second, 10*time.Millisecond)
	long := NewRedisLocker(client, 30*time.Second, time.Second, 10*time.Millisecond)

	stale, err := short.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond) // let the TTL expire

	current, err := long.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire after expiry failed: %v", err)
	}
	defer current.Release(ctx)

	// The stale holder releasing must not free the new holder's lease.
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale Release failed: %v", err)
	}
	if exists, _ := client.Exists(ctx, key).Result(); exists != 1 {
		t.Error("stale release deleted the current holder's lease")
	}
}

func TestAcquire_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "lock-test:concurrent"
	client.Del(ctx, key)

	locker := NewRedisLocker(client, 30*time.Second, 2*time.Second, 5*time.Millisecond)

	var holders atomic.Int32
	var maxHolders atomic.Int32
	var acquired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lease, err := locker.Acquire(ctx, key)
			if err != nil {
				if !errors.Is(err, port.ErrLockNotAcquired) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			acquired.Add(1)

			current := holders.Add(1)
			for {
				max := maxHolders.Load()
				if current <= max || maxHolders.CompareAndSwap(max, current) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			holders.Add(-1)

			lease.Release(ctx)
		}()
	}
	wg.Wait()

	if maxHolders.Load() > 1 {
		t.Errorf("expected at most 1 concurrent holder, observed %d", maxHolders.Load())
	}
	if acquired.Load() == 0 {
		t.Error("expected at least one goroutine to acquire the lock")
	}
}
