package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/jobmill/jobmill/pkg/jobs"
)

func scheduleFixture(frequency jobs.Frequency, at string, start, end time.Time) jobs.Job {
	return jobs.Job{
		ID:           1,
		JobName:      "nightly-report",
		Frequency:    frequency,
		ScheduleTime: at,
		StartDate:    start,
		EndDate:      end,
		UserID:       42,
	}
}

func TestCronSpec(t *testing.T) {
	// 2026-03-04 is a Wednesday.
	start := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	tests := []struct {
		name string
		job  jobs.Job
		want string
	}{
		{
			name: "daily",
			job:  scheduleFixture(jobs.FrequencyDaily, "02:30:00", start, end),
			want: "0 30 2 * * *",
		},
		{
			name: "weekly anchored on start weekday",
			job:  scheduleFixture(jobs.FrequencyWeekly, "08:15:30", start, end),
			want: "30 15 8 * * 3",
		},
		{
			name: "monthly anchored on start day",
			job:  scheduleFixture(jobs.FrequencyMonthly, "23:00:00", start, end),
			want: "0 0 23 4 * *",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cronSpec(tt.job)
			if err != nil {
				t.Fatalf("cronSpec: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCronSpecRejectsBadInput(t *testing.T) {
	start := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	job := scheduleFixture(jobs.FrequencyDaily, "2:30", start, end)
	if _, err := cronSpec(job); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad schedule_time, got %v", err)
	}

	job = scheduleFixture("hourly", "02:30:00", start, end)
	if _, err := cronSpec(job); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unsupported frequency, got %v", err)
	}
}

func TestJobScheduleNextHonorsWindow(t *testing.T) {
	start := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	schedule, err := buildSchedule(scheduleFixture(jobs.FrequencyDaily, "02:30:00", start, end))
	if err != nil {
		t.Fatalf("buildSchedule: %v", err)
	}

	// Before the window: first run lands on the window's first day.
	run, ok := schedule.next(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected a run inside the window")
	}
	if want := time.Date(2026, 3, 4, 2, 30, 0, 0, time.UTC); !run.Equal(want) {
		t.Errorf("expected first run %v, got %v", want, run)
	}

	// Mid window: next run is the following day.
	run, ok = schedule.next(time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected a run inside the window")
	}
	if want := time.Date(2026, 3, 5, 2, 30, 0, 0, time.UTC); !run.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, run)
	}

	// Last run of the window is on end_date itself.
	run, ok = schedule.next(time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected the end_date run inside the window")
	}
	if want := time.Date(2026, 3, 6, 2, 30, 0, 0, time.UTC); !run.Equal(want) {
		t.Errorf("expected final run %v, got %v", want, run)
	}

	// Past the window: exhausted.
	if _, ok = schedule.next(time.Date(2026, 3, 6, 3, 0, 0, 0, time.UTC)); ok {
		t.Error("expected window exhausted past end_date")
	}
}

func TestJobScheduleNextWeekly(t *testing.T) {
	// Wednesday anchor; runs every Wednesday at 08:00.
	start := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 2, 0)
	schedule, err := buildSchedule(scheduleFixture(jobs.FrequencyWeekly, "08:00:00", start, end))
	if err != nil {
		t.Fatalf("buildSchedule: %v", err)
	}

	run, ok := schedule.next(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected a run inside the window")
	}
	if want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC); !run.Equal(want) {
		t.Errorf("expected next Wednesday %v, got %v", want, run)
	}
}

func TestJobScheduleNextMonthly(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	schedule, err := buildSchedule(scheduleFixture(jobs.FrequencyMonthly, "12:00:00", start, end))
	if err != nil {
		t.Fatalf("buildSchedule: %v", err)
	}

	run, ok := schedule.next(time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected a run inside the window")
	}
	if want := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC); !run.Equal(want) {
		t.Errorf("expected next month's run %v, got %v", want, run)
	}
}
