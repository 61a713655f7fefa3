package port

import (
	"context"
	"errors"
)

// ErrLockNotAcquired is returned by Acquire when the lease could not be
// obtained within the configured wait window. It is an expected outcome
// under contention, not a fault.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lease is a held distributed lock.
type Lease interface {
	// Release frees the lease. Safe to call after the TTL has expired and
	// safe to call more than once.
	Release(ctx context.Context) error
}

// Locker acquires resource-keyed, time-bounded distributed leases. TTL,
// maximum wait and retry interval are configured on the implementation.
type Locker interface {
	// Acquire blocks up to the configured wait window, retrying at the
	// configured interval. Returns ErrLockNotAcquired on timeout.
	Acquire(ctx context.Context, key string) (Lease, error)
}
