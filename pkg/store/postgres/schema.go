package postgres

import (
	"context"
	"fmt"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
	id            BIGSERIAL PRIMARY KEY,
	jobname       TEXT NOT NULL,
	frequency     TEXT NOT NULL,
	schedule_time TEXT NOT NULL,
	start_date    DATE NOT NULL,
	end_date      DATE NOT NULL,
	user_id       BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createJobStatusTable = `
CREATE TABLE IF NOT EXISTS job_status (
	id            BIGSERIAL PRIMARY KEY,
	job_id        BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	status        TEXT NOT NULL,
	execution_log TEXT NOT NULL DEFAULT '',
	start_time    TIMESTAMPTZ NOT NULL
);`

const createJobStatusIndex = `
CREATE INDEX IF NOT EXISTS idx_job_status_job_id_start_time
	ON job_status (job_id, start_time DESC);`

// EnsureSchema creates the jobs and job_status tables if they do not exist.
// The index on (job_id, start_time DESC) backs the latest-status lookup.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	statements := []struct {
		name string
		sql  string
	}{
		{name: "jobs", sql: createJobsTable},
		{name: "job_status", sql: createJobStatusTable},
		{name: "job_status index", sql: createJobStatusIndex},
	}

	for _, stmt := range statements {
		if _, err := a.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}

	a.logger.Info("database schema ensured", "tables", []string{"jobs", "job_status"})
	return nil
}
