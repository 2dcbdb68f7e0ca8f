package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRuntimeLockProviderAcquireRelease(t *testing.T) {
	provider := NewRuntimeLockProvider()
	defer provider.Close()

	lease, acquired, err := provider.Acquire(context.Background(), "jobs:1:100", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("expected acquire to succeed, acquired=%v err=%v", acquired, err)
	}

	// Second acquire on a held key loses the race.
	_, acquired, err = provider.Acquire(context.Background(), "jobs:1:100", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if acquired {
		t.Fatal("expected held key to reject a second acquire")
	}

	if err := provider.Release(context.Background(), lease); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Released key is free again.
	_, acquired, err = provider.Acquire(context.Background(), "jobs:1:100", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("expected re-acquire after release, acquired=%v err=%v", acquired, err)
	}
}

func TestRuntimeLockProviderExpiredLeaseIsReclaimable(t *testing.T) {
	provider := NewRuntimeLockProvider()
	defer provider.Close()

	if _, acquired, err := provider.Acquire(context.Background(), "jobs:2:100", time.Millisecond); err != nil || !acquired {
		t.Fatalf("expected acquire to succeed, acquired=%v err=%v", acquired, err)
	}
	time.Sleep(5 * time.Millisecond)

	_, acquired, err := provider.Acquire(context.Background(), "jobs:2:100", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("expected expired lease reclaimed, acquired=%v err=%v", acquired, err)
	}
}

func TestRuntimeLockProviderRenew(t *testing.T) {
	provider := NewRuntimeLockProvider()
	defer provider.Close()

	lease, _, err := provider.Acquire(context.Background(), "jobs:3:100", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	before := lease.ExpireAt
	if err := provider.Renew(context.Background(), lease, 2*time.Minute); err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !lease.ExpireAt.After(before) {
		t.Errorf("expected lease extended past %v, got %v", before, lease.ExpireAt)
	}

	stale := &LockLease{Key: lease.Key, Token: "other-token"}
	if err := provider.Renew(context.Background(), stale, time.Minute); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale token, got %v", err)
	}
}

func TestRuntimeLockProviderReleaseRejectsStaleToken(t *testing.T) {
	provider := NewRuntimeLockProvider()
	defer provider.Close()

	lease, _, err := provider.Acquire(context.Background(), "jobs:4:100", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	stale := &LockLease{Key: lease.Key, Token: "other-token"}
	if err := provider.Release(context.Background(), stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale token, got %v", err)
	}
}

func TestRuntimeLockProviderClose(t *testing.T) {
	provider := NewRuntimeLockProvider()
	if err := provider.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthcheck: %v", err)
	}
	if err := provider.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := provider.HealthCheck(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after close, got %v", err)
	}
	if _, _, err := provider.Acquire(context.Background(), "jobs:5:100", time.Minute); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after close, got %v", err)
	}
}
