// Package metrics provides Prometheus collectors for the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the worker's application metrics.
type Collector struct {
	JobsClaimedTotal   prometheus.Counter
	JobsCompletedTotal prometheus.Counter
	JobsFailedTotal    *prometheus.CounterVec
	ClaimMissesTotal   prometheus.Counter
	StuckJobsTotal     prometheus.Counter
	ProcessDuration    prometheus.Histogram
}

// NewCollector registers and returns the worker metrics on reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		JobsClaimedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_claimed_total",
			Help:      "Total number of jobs claimed from the queue",
		}),
		JobsCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs finished as COMPLETED",
		}),
		JobsFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs finished as FAILED, by reason",
		}, []string{"reason"}),
		ClaimMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_misses_total",
			Help:      "Total number of claim attempts that found no PENDING job",
		}),
		StuckJobsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stuck_jobs_total",
			Help:      "Jobs left IN_PROGRESS because the terminal update failed",
		}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_process_duration_seconds",
			Help:      "Duration of the fetch and aggregation pipeline per job",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}
