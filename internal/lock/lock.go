// Package lock provides the named, TTL-bounded mutual exclusion primitive
// shared by the discovery and migration jobs. A locker instance holds at most
// one lock at a time; acquisition waits up to a bounded duration and reports
// contention as a plain false, never as an error.
package lock

import (
	"context"
	"time"
)

// Locker is the distributed lock client used by the periodic jobs. The TTL
// guards against a crashed holder wedging the system: the lock expires on its
// own after the holder's maximum execution budget.
type Locker interface {
	// TryAcquire attempts to take the named lock, waiting up to maxWait for
	// it to become free. It returns false when the lock is held elsewhere at
	// the end of the wait; an error indicates the lock service itself failed.
	TryAcquire(ctx context.Context, name string, ttl, maxWait time.Duration) (bool, error)

	// Release releases the currently held lock. Releasing an expired or
	// never-acquired lock is not an error.
	Release(ctx context.Context) error
}
