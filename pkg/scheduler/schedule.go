package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobmill/jobmill/pkg/jobs"
)

// cronParser accepts six-field expressions so schedule_time seconds survive
// the translation.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// jobSchedule is the compiled recurrence of one job, bounded by its
// start_date/end_date window. All computation happens in UTC.
type jobSchedule struct {
	spec        string
	schedule    cron.Schedule
	windowStart time.Time
	windowEnd   time.Time
}

// buildSchedule compiles a job's frequency, time of day and date window into
// a cron schedule. The weekly weekday and monthly day-of-month are anchored
// on the job's start_date.
func buildSchedule(job jobs.Job) (*jobSchedule, error) {
	spec, err := cronSpec(job)
	if err != nil {
		return nil, err
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, errors.Join(schedulerError(ErrValidation, fmt.Sprintf("invalid cron spec %q", spec)), err)
	}

	start := job.StartDate.UTC()
	windowStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := job.EndDate.UTC()
	windowEnd := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
	if windowEnd.Before(windowStart) {
		return nil, schedulerError(ErrValidation, "end_date is before start_date")
	}

	return &jobSchedule{
		spec:        spec,
		schedule:    schedule,
		windowStart: windowStart,
		windowEnd:   windowEnd,
	}, nil
}

func cronSpec(job jobs.Job) (string, error) {
	at, err := time.Parse(jobs.TimeOfDayLayout, job.ScheduleTime)
	if err != nil {
		return "", errors.Join(schedulerError(ErrValidation, "invalid schedule_time"), err)
	}

	sec, min, hour := at.Second(), at.Minute(), at.Hour()
	switch job.Frequency {
	case jobs.FrequencyDaily:
		return fmt.Sprintf("%d %d %d * * *", sec, min, hour), nil
	case jobs.FrequencyWeekly:
		return fmt.Sprintf("%d %d %d * * %d", sec, min, hour, int(job.StartDate.UTC().Weekday())), nil
	case jobs.FrequencyMonthly:
		return fmt.Sprintf("%d %d %d %d * *", sec, min, hour, job.StartDate.UTC().Day()), nil
	default:
		return "", schedulerError(ErrValidation, fmt.Sprintf("unsupported frequency %q", job.Frequency))
	}
}

// next returns the first run strictly after now that falls inside the job's
// date window. The second return is false once the window is exhausted.
func (s *jobSchedule) next(now time.Time) (time.Time, bool) {
	after := now.UTC()
	if floor := s.windowStart.Add(-time.Second); after.Before(floor) {
		after = floor
	}

	run := s.schedule.Next(after)
	if run.IsZero() || run.After(s.windowEnd) {
		return time.Time{}, false
	}
	return run, true
}
