package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is an in-process Locker for tests and single-node deployments.
// It honors the same TTL and bounded-wait semantics as the redis
// implementation.
type MemoryLocker struct {
	registry      *MemoryRegistry
	retryInterval time.Duration

	// mu guards the holder state; a locker may be shared by concurrent
	// callers (e.g. HTTP-triggered job runs)
	mu    sync.Mutex
	name  string
	token string
}

// MemoryRegistry holds the shared lock table; lockers created from the same
// registry contend with each other.
type MemoryRegistry struct {
	mu    sync.Mutex
	locks map[string]memoryLease
}

type memoryLease struct {
	token     string
	expiresAt time.Time
}

// NewMemoryRegistry creates an empty shared lock table
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		locks: make(map[string]memoryLease),
	}
}

// NewLocker creates a locker contending on this registry
func (r *MemoryRegistry) NewLocker(retryInterval time.Duration) *MemoryLocker {
	if retryInterval <= 0 {
		retryInterval = 10 * time.Millisecond
	}
	return &MemoryLocker{
		registry:      r,
		retryInterval: retryInterval,
	}
}

func (r *MemoryRegistry) tryTake(name, token string, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lease, held := r.locks[name]
	if held && time.Now().Before(lease.expiresAt) {
		return false
	}

	r.locks[name] = memoryLease{
		token:     token,
		expiresAt: time.Now().Add(ttl),
	}
	return true
}

func (r *MemoryRegistry) release(name, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lease, held := r.locks[name]
	if !held || lease.token != token {
		return false
	}
	delete(r.locks, name)
	return true
}

// TryAcquire implements Locker
func (l *MemoryLocker) TryAcquire(ctx context.Context, name string, ttl, maxWait time.Duration) (bool, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(maxWait)

	for {
		if l.registry.tryTake(name, token, ttl) {
			l.mu.Lock()
			l.name = name
			l.token = token
			l.mu.Unlock()
			return true, nil
		}

		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

// Release implements Locker
func (l *MemoryLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	name, token := l.name, l.token
	l.name, l.token = "", ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	l.registry.release(name, token)
	return nil
}
