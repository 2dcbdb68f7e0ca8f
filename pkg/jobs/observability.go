package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobmill_jobs_scheduled_total",
			Help: "Total number of jobs successfully scheduled",
		},
	)

	jobsScheduleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobmill_jobs_schedule_failures_total",
			Help: "Total number of failed job scheduling attempts",
		},
		[]string{"stage"},
	)

	jobsFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobmill_jobs_fetches_total",
			Help: "Total number of job read operations",
		},
		[]string{"operation", "outcome"},
	)
)

func recordJobScheduled() {
	jobsScheduledTotal.Inc()
}

func recordScheduleFailure(stage string) {
	jobsScheduleFailuresTotal.WithLabelValues(stage).Inc()
}

func recordFetch(operation, outcome string) {
	jobsFetchesTotal.WithLabelValues(operation, outcome).Inc()
}
