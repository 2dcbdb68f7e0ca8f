package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jobmill/jobmill/pkg/store"
)

// Repository provides persistence for Job and JobStatus rows.
type Repository interface {
	// Insert stages a new job row and populates its generated id and
	// created_at. Statements run inside the transaction carried by ctx when
	// one is present.
	Insert(ctx context.Context, job *Job) error

	// List returns every job row in store order.
	List(ctx context.Context) ([]Job, error)

	// FindByID returns the job with the given id, or an error wrapping
	// ErrNotFound when no row matches.
	FindByID(ctx context.Context, id int64) (*Job, error)

	// LatestStatus returns the most recent status row for the job, ordered
	// by start_time, or (nil, nil) when the job has never run.
	LatestStatus(ctx context.Context, jobID int64) (*JobStatus, error)

	// InsertStatus records one execution outcome for a job.
	InsertStatus(ctx context.Context, status *JobStatus) error
}

// PostgresRepository implements Repository on top of a SQL executor.
type PostgresRepository struct {
	exec store.SQLExecutor
}

// NewPostgresRepository creates a repository bound to the given executor.
func NewPostgresRepository(exec store.SQLExecutor) (*PostgresRepository, error) {
	if exec == nil {
		return nil, jobsError(ErrInvalidArgument, "sql executor is required")
	}
	return &PostgresRepository{exec: exec}, nil
}

const insertJobQuery = `
INSERT INTO jobs (jobname, frequency, schedule_time, start_date, end_date, user_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`

// Insert persists a job row and refreshes the generated fields.
func (r *PostgresRepository) Insert(ctx context.Context, job *Job) error {
	if job == nil {
		return jobsError(ErrInvalidArgument, "job is nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	err := r.exec.QueryRowContext(ctx, insertJobQuery,
		job.JobName,
		string(job.Frequency),
		job.ScheduleTime,
		job.StartDate.Format(DateLayout),
		job.EndDate.Format(DateLayout),
		job.UserID,
	).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

const listJobsQuery = `
SELECT id, jobname, frequency, schedule_time, start_date, end_date, user_id, created_at
FROM jobs`

// List returns every job row without re-sorting.
func (r *PostgresRepository) List(ctx context.Context) ([]Job, error) {
	rows, err := r.exec.QueryContext(ctx, listJobsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

const findJobQuery = `
SELECT id, jobname, frequency, schedule_time, start_date, end_date, user_id, created_at
FROM jobs
WHERE id = $1`

// FindByID returns a single job row by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*Job, error) {
	rows, err := r.exec.QueryContext(ctx, findJobQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read job row: %w", err)
		}
		return nil, jobsError(ErrNotFound, fmt.Sprintf("job %d", id))
	}

	job, err := scanJob(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}

const latestStatusQuery = `
SELECT id, job_id, status, execution_log, start_time
FROM job_status
WHERE job_id = $1
ORDER BY start_time DESC
LIMIT 1`

// LatestStatus returns the newest status row for a job. Absence is a normal
// outcome, not an error.
func (r *PostgresRepository) LatestStatus(ctx context.Context, jobID int64) (*JobStatus, error) {
	status := &JobStatus{}
	err := r.exec.QueryRowContext(ctx, latestStatusQuery, jobID).Scan(
		&status.ID,
		&status.JobID,
		&status.Status,
		&status.ExecutionLog,
		&status.StartTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job status: %w", err)
	}
	return status, nil
}

const insertStatusQuery = `
INSERT INTO job_status (job_id, status, execution_log, start_time)
VALUES ($1, $2, $3, $4)
RETURNING id`

// InsertStatus records one execution outcome.
func (r *PostgresRepository) InsertStatus(ctx context.Context, status *JobStatus) error {
	if status == nil {
		return jobsError(ErrInvalidArgument, "status is nil")
	}
	if status.JobID <= 0 {
		return jobsError(ErrInvalidArgument, "status job_id is required")
	}

	err := r.exec.QueryRowContext(ctx, insertStatusQuery,
		status.JobID,
		status.Status,
		status.ExecutionLog,
		status.StartTime,
	).Scan(&status.ID)
	if err != nil {
		return fmt.Errorf("failed to insert job status: %w", err)
	}
	return nil
}

func scanJob(rows *sql.Rows) (*Job, error) {
	job := &Job{}
	var frequency string
	if err := rows.Scan(
		&job.ID,
		&job.JobName,
		&frequency,
		&job.ScheduleTime,
		&job.StartDate,
		&job.EndDate,
		&job.UserID,
		&job.CreatedAt,
	); err != nil {
		return nil, err
	}
	job.Frequency = Frequency(frequency)
	return job, nil
}
