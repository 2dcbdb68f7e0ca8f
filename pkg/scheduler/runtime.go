package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jobmill/jobmill/pkg/jobs"
	"github.com/jobmill/jobmill/pkg/observability/logger"
)

const (
	DefaultPollInterval     = 1 * time.Second
	DefaultLockTTL          = 30 * time.Second
	DefaultExecutionTimeout = 10 * time.Second
)

// StatusCompleted is recorded for each run the runtime carries out.
const StatusCompleted = "completed"

// Config controls runtime behavior.
type Config struct {
	PollInterval     time.Duration
	LockTTL          time.Duration
	ExecutionTimeout time.Duration
}

func (c *Config) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = DefaultExecutionTimeout
	}
}

type entry struct {
	job      jobs.Job
	schedule *jobSchedule
	nextRun  time.Time
}

// Runtime executes registered jobs on their recurrence and records one
// status row per run. A distributed lock keyed on (job id, run time) keeps
// each run to a single instance.
type Runtime struct {
	source   JobSource
	recorder StatusRecorder
	lock     LockProvider
	log      logger.Logger

	config Config

	mu      sync.Mutex
	entries map[int64]*entry
	// retired holds ids whose date window has elapsed or been exhausted, so
	// repeated store syncs neither rebuild their schedules nor re-log the
	// elapsed-window warning.
	retired map[int64]struct{}
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRuntime creates a scheduler runtime.
func NewRuntime(source JobSource, recorder StatusRecorder, lockProvider LockProvider, log logger.Logger, cfg Config) (*Runtime, error) {
	if source == nil {
		return nil, schedulerError(ErrInvalidArgument, "job source is required")
	}
	if recorder == nil {
		return nil, schedulerError(ErrInvalidArgument, "status recorder is required")
	}
	if lockProvider == nil {
		return nil, schedulerError(ErrInvalidArgument, "lock provider is required")
	}
	if log == nil {
		return nil, schedulerError(ErrInvalidArgument, "logger is required")
	}

	cfg.normalize()
	return &Runtime{
		source:   source,
		recorder: recorder,
		lock:     lockProvider,
		log:      log,
		config:   cfg,
		entries:  map[int64]*entry{},
		retired:  map[int64]struct{}{},
	}, nil
}

// Register adds a persisted job to the run table. Registering an id twice is
// a no-op, so the store sync can call it repeatedly. Ids whose date window
// has elapsed are retired and stay no-ops on later calls.
func (r *Runtime) Register(_ context.Context, job jobs.Job) error {
	if r == nil {
		return schedulerError(ErrNotInitialized, "scheduler runtime is not initialized")
	}
	if job.ID <= 0 {
		return schedulerError(ErrInvalidArgument, "job id is required")
	}

	r.mu.Lock()
	if _, done := r.retired[job.ID]; done {
		r.mu.Unlock()
		return nil
	}
	if _, exists := r.entries[job.ID]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	schedule, err := buildSchedule(job)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.retired[job.ID]; done {
		return nil
	}
	if _, exists := r.entries[job.ID]; exists {
		return nil
	}

	nextRun, ok := schedule.next(time.Now().UTC())
	if !ok {
		// Window already elapsed; nothing will ever run.
		r.retired[job.ID] = struct{}{}
		r.log.Warn("job window already elapsed, not scheduling",
			"job_id", job.ID,
			"jobname", job.JobName,
		)
		return nil
	}

	r.entries[job.ID] = &entry{
		job:      job,
		schedule: schedule,
		nextRun:  nextRun,
	}
	recordJobRegistered()
	r.log.Debug("job registered with runtime",
		"job_id", job.ID,
		"jobname", job.JobName,
		"cron", schedule.spec,
		"next_run", nextRun,
	)
	return nil
}

// Start syncs jobs from the store and sweeps due runs until context
// cancellation.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return schedulerError(ErrNotInitialized, "scheduler runtime is not initialized")
	}
	if ctx == nil {
		return schedulerError(ErrInvalidArgument, "context is required")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return schedulerError(ErrConflict, "scheduler already running")
	}
	runningCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.runLoop(runningCtx)

	<-runningCtx.Done()
	return r.Stop(context.Background())
}

// Stop requests shutdown and waits for the sweep loop to drain.
func (r *Runtime) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	waitCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-waitCh:
		return nil
	}
}

func (r *Runtime) runLoop(ctx context.Context) {
	defer r.wg.Done()

	if err := r.syncJobs(ctx); err != nil {
		r.log.Error("initial job sync failed", "error", err)
	}

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := r.syncJobs(ctx); err != nil {
				r.log.Error("job sync failed", "error", err)
			}
			r.sweep(ctx, now.UTC())
		}
	}
}

// syncJobs registers store rows this instance has not seen, covering jobs
// committed by other instances or registrations lost to a restart.
func (r *Runtime) syncJobs(ctx context.Context) error {
	rows, err := r.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list jobs failed: %w", err)
	}
	for _, job := range rows {
		if err := r.Register(ctx, job); err != nil {
			r.log.Warn("skipping unschedulable job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (r *Runtime) sweep(ctx context.Context, now time.Time) {
	due := r.collectDue(now)
	for _, e := range due {
		if err := r.runJob(ctx, e.job, e.nextRun); err != nil {
			r.log.Error("job run failed", "job_id", e.job.ID, "jobname", e.job.JobName, "error", err)
		}
		r.advance(e.job.ID, e.nextRun)
	}
}

func (r *Runtime) collectDue(now time.Time) []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := make([]*entry, 0)
	for _, e := range r.entries {
		if !e.nextRun.After(now) {
			due = append(due, &entry{job: e.job, schedule: e.schedule, nextRun: e.nextRun})
		}
	}
	return due
}

// advance moves a job past the run it just attempted, dropping the entry
// once its date window is exhausted.
func (r *Runtime) advance(jobID int64, ranAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[jobID]
	if !ok {
		return
	}
	next, ok := e.schedule.next(ranAt)
	if !ok {
		delete(r.entries, jobID)
		r.retired[jobID] = struct{}{}
		r.log.Info("job window exhausted, unscheduling", "job_id", jobID, "jobname", e.job.JobName)
		return
	}
	e.nextRun = next
}

// runJob records a single execution under the run lock. A lost lock race
// means another instance owns this run and is a normal outcome.
func (r *Runtime) runJob(ctx context.Context, job jobs.Job, runAt time.Time) error {
	lockKey := fmt.Sprintf("jobs:%d:%d", job.ID, runAt.Unix())
	lease, acquired, err := r.lock.Acquire(ctx, lockKey, r.config.LockTTL)
	if err != nil {
		recordJobRun("lock_error")
		return fmt.Errorf("acquire lock failed: %w", err)
	}
	if !acquired {
		recordLockContention()
		return nil
	}

	execCtx, cancel := context.WithTimeout(ctx, r.config.ExecutionTimeout)
	defer cancel()

	status := &jobs.JobStatus{
		JobID:        job.ID,
		Status:       StatusCompleted,
		ExecutionLog: fmt.Sprintf("job %q run at %s completed", job.JobName, runAt.Format(time.RFC3339)),
		StartTime:    runAt,
	}
	recordErr := r.recorder.InsertStatus(execCtx, status)
	releaseErr := r.lock.Release(ctx, lease)

	if recordErr != nil {
		recordJobRun("record_error")
	} else {
		recordJobRun("ok")
		r.log.Info("job run recorded",
			"job_id", job.ID,
			"jobname", job.JobName,
			"run_at", runAt,
		)
	}
	if releaseErr != nil {
		r.log.Warn("failed to release run lock", "job_id", job.ID, "lock_key", lockKey, "error", releaseErr)
	}
	if recordErr != nil || releaseErr != nil {
		return errors.Join(recordErr, releaseErr)
	}
	return nil
}

// RegisteredJobs reports the ids currently in the run table.
func (r *Runtime) RegisteredJobs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
