package jobs

import (
	"context"
	"errors"

	"github.com/jobmill/jobmill/pkg/observability/logger"
	"github.com/jobmill/jobmill/pkg/store"
)

// Registrar is the scheduler-registration sink invoked with a persisted job
// after a successful commit. Registration failure does not undo the insert;
// the scheduler runtime re-loads unregistered jobs from the store on its next
// sweep.
type Registrar interface {
	Register(ctx context.Context, job Job) error
}

// Service exposes the job lifecycle operations. It is stateless: every call
// runs to completion against the store and retains nothing across calls.
type Service struct {
	uow       store.UnitOfWork
	repo      Repository
	registrar Registrar
	log       logger.Logger
}

// NewService wires the service. The registrar is optional; a nil registrar
// skips scheduler registration after insert.
func NewService(uow store.UnitOfWork, repo Repository, registrar Registrar, log logger.Logger) (*Service, error) {
	if uow == nil {
		return nil, jobsError(ErrInvalidArgument, "unit of work is required")
	}
	if repo == nil {
		return nil, jobsError(ErrInvalidArgument, "repository is required")
	}
	if log == nil {
		return nil, jobsError(ErrInvalidArgument, "logger is required")
	}
	return &Service{
		uow:       uow,
		repo:      repo,
		registrar: registrar,
		log:       log,
	}, nil
}

// ScheduleNewJob persists a new job inside one transaction and registers it
// with the scheduler after commit. Any storage failure rolls the transaction
// back exactly once and surfaces as ErrStorage; a rollback failure on top of
// that is logged and never masks the original error.
func (s *Service) ScheduleNewJob(ctx context.Context, req ScheduleJobRequest) (*ScheduledJobResponse, error) {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to begin transaction", "error", err)
		recordScheduleFailure("begin")
		return nil, errors.Join(jobsError(ErrStorage, "begin transaction failed"), err)
	}

	job, err := req.Job()
	if err != nil {
		s.rollback(ctx, tx, err)
		recordScheduleFailure("validate")
		return nil, err
	}

	if err := s.repo.Insert(tx.Context(), &job); err != nil {
		s.rollback(ctx, tx, err)
		s.log.WithContext(ctx).Error("failed to insert job", "jobname", job.JobName, "error", err)
		recordScheduleFailure("insert")
		return nil, errors.Join(jobsError(ErrStorage, "insert job failed"), err)
	}

	if err := tx.Commit(); err != nil {
		s.rollback(ctx, tx, err)
		s.log.WithContext(ctx).Error("failed to commit job insert", "jobname", job.JobName, "error", err)
		recordScheduleFailure("commit")
		return nil, errors.Join(jobsError(ErrStorage, "commit job failed"), err)
	}

	if s.registrar != nil {
		if err := s.registrar.Register(ctx, job); err != nil {
			// The row is committed; the runtime picks it up on its next
			// store sync, so registration failure is logged, not returned.
			s.log.WithContext(ctx).Error("failed to register job with scheduler",
				"job_id", job.ID,
				"jobname", job.JobName,
				"error", err,
			)
		}
	}

	s.log.WithContext(ctx).Info("job scheduled", "job_id", job.ID, "jobname", job.JobName)
	recordJobScheduled()

	resp := NewScheduledJobResponse(&job)
	return &resp, nil
}

// FetchScheduledJobs returns every job in store order. An empty store yields
// an empty slice, not an error.
func (s *Service) FetchScheduledJobs(ctx context.Context) ([]ScheduledJobResponse, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to list jobs", "error", err)
		recordFetch("list", "error")
		return nil, errors.Join(jobsError(ErrStorage, "list jobs failed"), err)
	}

	responses := make([]ScheduledJobResponse, 0, len(rows))
	for i := range rows {
		responses = append(responses, NewScheduledJobResponse(&rows[i]))
	}

	recordFetch("list", "ok")
	return responses, nil
}

// FetchJobDetails returns one job joined with its latest execution status.
// A missing job id yields ErrNotFound, a distinct, expected outcome; a job
// without any status yields the fixed placeholder values.
func (s *Service) FetchJobDetails(ctx context.Context, jobID int64) (*JobDetails, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordFetch("details", "not_found")
			return nil, err
		}
		s.log.WithContext(ctx).Error("failed to look up job", "job_id", jobID, "error", err)
		recordFetch("details", "error")
		return nil, errors.Join(jobsError(ErrStorage, "find job failed"), err)
	}

	status, err := s.repo.LatestStatus(ctx, jobID)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to look up job status", "job_id", jobID, "error", err)
		recordFetch("details", "error")
		return nil, errors.Join(jobsError(ErrStorage, "find job status failed"), err)
	}

	details := &JobDetails{
		ID:           job.ID,
		JobName:      job.JobName,
		Status:       StatusPlaceholder,
		ExecutionLog: ExecutionLogPlaceholder,
	}
	if status != nil {
		details.Status = status.Status
		details.ExecutionLog = status.ExecutionLog
		startTime := status.StartTime
		details.StartTime = &startTime
	}

	s.log.WithContext(ctx).Info("job details fetched", "job_id", jobID, "jobname", job.JobName)
	recordFetch("details", "ok")
	return details, nil
}

// rollback undoes the active transaction after a failure. A secondary
// rollback failure is logged and swallowed so the original error keeps
// propagating.
func (s *Service) rollback(ctx context.Context, tx store.Tx, cause error) {
	if err := tx.Rollback(); err != nil {
		s.log.WithContext(ctx).Error("failed to rollback transaction",
			"rollback_error", err,
			"original_error", cause,
		)
	}
}
