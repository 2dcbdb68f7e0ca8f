package jobs

import (
	"time"
)

// Placeholder values returned by FetchJobDetails when a job has no recorded
// execution status yet.
const (
	StatusPlaceholder       = "No status available"
	ExecutionLogPlaceholder = "No logs available"
)

// ScheduleJobRequest is the job-creation payload accepted at the API
// boundary. Field-level constraints are enforced there via validator tags;
// cross-field checks happen in Job().
type ScheduleJobRequest struct {
	JobName      string `json:"jobname" validate:"required,max=255"`
	Frequency    string `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	ScheduleTime string `json:"schedule_time" validate:"required,datetime=15:04:05"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	UserID       int64  `json:"user_id" validate:"required,gt=0"`
}

// Job constructs a Job record from the request field mapping.
func (r ScheduleJobRequest) Job() (Job, error) {
	frequency, err := ParseFrequency(r.Frequency)
	if err != nil {
		return Job{}, err
	}

	startDate, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return Job{}, jobsError(ErrValidation, "start_date must be in YYYY-MM-DD form")
	}
	endDate, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return Job{}, jobsError(ErrValidation, "end_date must be in YYYY-MM-DD form")
	}

	job := Job{
		JobName:      r.JobName,
		Frequency:    frequency,
		ScheduleTime: r.ScheduleTime,
		StartDate:    startDate,
		EndDate:      endDate,
		UserID:       r.UserID,
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ScheduledJobResponse is the outward shape of a persisted job.
type ScheduledJobResponse struct {
	ID           int64  `json:"id"`
	JobName      string `json:"jobname"`
	Frequency    string `json:"frequency"`
	ScheduleTime string `json:"schedule_time"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	UserID       int64  `json:"user_id"`
}

// NewScheduledJobResponse maps a Job row to its outward response shape.
func NewScheduledJobResponse(job *Job) ScheduledJobResponse {
	return ScheduledJobResponse{
		ID:           job.ID,
		JobName:      job.JobName,
		Frequency:    string(job.Frequency),
		ScheduleTime: job.ScheduleTime,
		StartDate:    job.StartDate.Format(DateLayout),
		EndDate:      job.EndDate.Format(DateLayout),
		UserID:       job.UserID,
	}
}

// JobDetails is the job view joined with its latest execution status.
// StartTime is nil when the job has never run.
type JobDetails struct {
	ID           int64      `json:"id"`
	JobName      string     `json:"jobname"`
	Status       string     `json:"status"`
	ExecutionLog string     `json:"execution_log"`
	StartTime    *time.Time `json:"start_time,omitempty"`
}
