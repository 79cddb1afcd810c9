package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lifecycle counters for the job lifecycle manager. Registered on the default
// registry and served by the monitor command via promhttp.
var (
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridq_submissions_total",
		Help: "Number of qsub submissions issued",
	})

	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridq_status_polls_total",
		Help: "Number of qstat status queries issued",
	})

	JobFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridq_job_failures_total",
		Help: "Number of fatal job outcomes by failure class",
	}, []string{"class"})

	ReconciliationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridq_reconciliations_total",
		Help: "Number of jobs reconciled done against their output targets",
	})

	ShortCircuitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridq_short_circuits_total",
		Help: "Number of tasks found already complete before submission",
	})

	ReconcileWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridq_reconcile_wait_seconds",
		Help:    "Time spent waiting for output targets to appear after the scheduler released a job",
		Buckets: prometheus.LinearBuckets(0, 5, 13), // 0..60s in 5s steps
	})
)
