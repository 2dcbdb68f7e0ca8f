package scheduler

import (
	"context"
	"time"

	"github.com/jobmill/jobmill/pkg/jobs"
)

// LockLease identifies a distributed lock instance.
type LockLease struct {
	Key      string
	Token    string
	ExpireAt time.Time
}

// LockProvider coordinates singleton execution across multiple runtime instances.
type LockProvider interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*LockLease, bool, error)
	Renew(ctx context.Context, lease *LockLease, ttl time.Duration) error
	Release(ctx context.Context, lease *LockLease) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// JobSource lists persisted jobs so the runtime picks up rows committed by
// instances it never heard a registration from.
type JobSource interface {
	List(ctx context.Context) ([]jobs.Job, error)
}

// StatusRecorder persists one execution outcome per run.
type StatusRecorder interface {
	InsertStatus(ctx context.Context, status *jobs.JobStatus) error
}
