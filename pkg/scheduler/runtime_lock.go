package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RuntimeLockProvider keeps leases in process memory. It gives single-node
// deployments the same LockProvider semantics without any external store;
// multi-instance deployments need the Redis or Postgres provider instead.
type RuntimeLockProvider struct {
	mu     sync.Mutex
	leases map[string]runtimeLease
	closed bool
}

type runtimeLease struct {
	token    string
	expireAt time.Time
}

// NewRuntimeLockProvider creates an in-memory lock provider.
func NewRuntimeLockProvider() *RuntimeLockProvider {
	return &RuntimeLockProvider{leases: map[string]runtimeLease{}}
}

// Acquire grants the lock when the key is free or its lease has expired.
func (p *RuntimeLockProvider) Acquire(_ context.Context, key string, ttl time.Duration) (*LockLease, bool, error) {
	if p == nil {
		return nil, false, schedulerError(ErrNotInitialized, "runtime lock provider is not initialized")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, schedulerError(ErrInvalidArgument, "lock key is required")
	}
	if ttl <= 0 {
		return nil, false, schedulerError(ErrInvalidArgument, "ttl must be > 0")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, schedulerError(ErrNotInitialized, "runtime lock provider is closed")
	}

	now := time.Now().UTC()
	if existing, ok := p.leases[key]; ok && existing.expireAt.After(now) {
		return nil, false, nil
	}

	token := randomLockToken()
	expireAt := now.Add(ttl)
	p.leases[key] = runtimeLease{token: token, expireAt: expireAt}
	return &LockLease{
		Key:      key,
		Token:    token,
		ExpireAt: expireAt,
	}, true, nil
}

// Renew extends the lease when the token still owns the key.
func (p *RuntimeLockProvider) Renew(_ context.Context, lease *LockLease, ttl time.Duration) error {
	if p == nil {
		return schedulerError(ErrNotInitialized, "runtime lock provider is not initialized")
	}
	if lease == nil {
		return schedulerError(ErrInvalidArgument, "lease is required")
	}
	if ttl <= 0 {
		return schedulerError(ErrInvalidArgument, "ttl must be > 0")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := p.leases[lease.Key]
	if !ok || existing.token != lease.Token || !existing.expireAt.After(now) {
		return schedulerError(ErrConflict, "lock renew rejected")
	}
	existing.expireAt = now.Add(ttl)
	p.leases[lease.Key] = existing
	lease.ExpireAt = existing.expireAt
	return nil
}

// Release frees the key when the token still owns it.
func (p *RuntimeLockProvider) Release(_ context.Context, lease *LockLease) error {
	if p == nil {
		return schedulerError(ErrNotInitialized, "runtime lock provider is not initialized")
	}
	if lease == nil {
		return schedulerError(ErrInvalidArgument, "lease is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.leases[lease.Key]
	if !ok || existing.token != lease.Token {
		return schedulerError(ErrConflict, "lock release rejected")
	}
	delete(p.leases, lease.Key)
	return nil
}

// HealthCheck reports closed state.
func (p *RuntimeLockProvider) HealthCheck(context.Context) error {
	if p == nil {
		return schedulerError(ErrNotInitialized, "runtime lock provider is not initialized")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return schedulerError(ErrNotInitialized, "runtime lock provider is closed")
	}
	return nil
}

// Close drops all leases and rejects further use.
func (p *RuntimeLockProvider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.leases = map[string]runtimeLease{}
	return nil
}
