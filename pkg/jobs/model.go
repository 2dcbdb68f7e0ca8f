package jobs

import (
	"strings"
	"time"
)

// Layouts for the date and time-of-day fields carried on job records.
const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04:05"
)

// Frequency is the recurrence label of a scheduled job.
type Frequency string

// Supported recurrence labels.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency converts a string to a Frequency.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(raw))) {
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	case FrequencyMonthly:
		return FrequencyMonthly, nil
	default:
		return "", jobsError(ErrValidation, "invalid frequency "+raw)
	}
}

// Job is a persisted record describing a schedulable task's recurrence and
// window. The id is generated by the store on insert; rows are never mutated
// or deleted by the service afterwards.
type Job struct {
	ID           int64
	JobName      string
	Frequency    Frequency
	ScheduleTime string
	StartDate    time.Time
	EndDate      time.Time
	UserID       int64
	CreatedAt    time.Time
}

// Validate checks the fields required before a job can be persisted.
func (j *Job) Validate() error {
	if j == nil {
		return jobsError(ErrInvalidArgument, "job is nil")
	}
	if strings.TrimSpace(j.JobName) == "" {
		return jobsError(ErrValidation, "jobname is required")
	}
	if _, err := ParseFrequency(string(j.Frequency)); err != nil {
		return err
	}
	if _, err := time.Parse(TimeOfDayLayout, j.ScheduleTime); err != nil {
		return jobsError(ErrValidation, "schedule_time must be in HH:MM:SS form")
	}
	if j.StartDate.IsZero() || j.EndDate.IsZero() {
		return jobsError(ErrValidation, "start_date and end_date are required")
	}
	if j.EndDate.Before(j.StartDate) {
		return jobsError(ErrValidation, "end_date cannot be before start_date")
	}
	if j.UserID <= 0 {
		return jobsError(ErrValidation, "user_id is required")
	}
	return nil
}

// JobStatus is a persisted record describing the outcome of one execution of
// a job. Rows are written by the scheduler runtime; the service only reads
// the most recent one per job.
type JobStatus struct {
	ID           int64
	JobID        int64
	Status       string
	ExecutionLog string
	StartTime    time.Time
}
