package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsClassified tracks normalized errors per service and category
	ErrorsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_errors_total",
			Help: "Total number of classified integration errors",
		},
		[]string{"service", "category", "retryable"},
	)

	// IntegrationCallsTotal tracks outbound calls per service
	IntegrationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_integration_calls_total",
			Help: "Total number of third-party calls",
		},
		[]string{"service", "transport", "outcome"},
	)

	// IntegrationLatency tracks outbound call latency
	IntegrationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faultline_integration_latency_seconds",
			Help:    "Third-party call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "transport"},
	)

	// RetryAttempts tracks re-issued calls after retryable failures
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_retry_attempts_total",
			Help: "Total number of retried calls",
		},
		[]string{"service", "category"},
	)

	// JobsEnqueued tracks jobs created by the record hook
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_jobs_enqueued_total",
			Help: "Total number of enqueued jobs",
		},
		[]string{"kind", "name"},
	)

	// JobsFinished tracks job outcomes
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_jobs_finished_total",
			Help: "Total number of finished job executions",
		},
		[]string{"name", "outcome"},
	)

	// JobsReclaimed counts stale running jobs put back to pending at startup
	JobsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_jobs_reclaimed_total",
			Help: "Total number of stale running jobs returned to the queue",
		},
	)

	// JobDuration tracks job execution time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faultline_job_duration_seconds",
			Help:    "Job execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name"},
	)

	// QueueDepth tracks jobs per status
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "faultline_queue_jobs",
			Help: "Number of jobs in the queue by status",
		},
		[]string{"status"},
	)

	// DBConnectionPoolUsage tracks the percentage of used database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultline_db_connection_pool_usage_percent",
			Help: "Percentage of open database connections against the pool limit",
		},
	)
)
