package scheduler

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobmill_scheduler_runs_total",
			Help: "Total number of job run attempts by outcome",
		},
		[]string{"outcome"},
	)

	schedulerLockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobmill_scheduler_lock_contention_total",
			Help: "Total number of runs skipped because another instance held the run lock",
		},
	)

	schedulerJobsRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobmill_scheduler_jobs_registered_total",
			Help: "Total number of jobs added to the run table",
		},
	)
)

func recordJobRun(outcome string) {
	schedulerRunsTotal.WithLabelValues(normalizeSchedulerLabel(outcome)).Inc()
}

func recordLockContention() {
	schedulerLockContentionTotal.Inc()
}

func recordJobRegistered() {
	schedulerJobsRegisteredTotal.Inc()
}

func normalizeSchedulerLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
