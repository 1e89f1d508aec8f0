package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks executed GraphQL requests by outcome. Operation
	// names come from callers and stay out of labels.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlgate_requests_total",
			Help: "Total number of GraphQL requests executed",
		},
		[]string{"outcome"}, // success, admission, transient, permanent, canceled
	)

	// RequestLatency tracks end-to-end request latency including retries and queueing
	RequestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gqlgate_request_latency_seconds",
			Help:    "GraphQL request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RetriesTotal tracks retry attempts scheduled after a retryable failure
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gqlgate_retries_total",
			Help: "Total number of retries scheduled",
		},
	)

	// AdmissionsTotal tracks rate limiter decisions
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlgate_limiter_admissions_total",
			Help: "Total number of rate limiter admission decisions",
		},
		[]string{"decision"}, // immediate, queued, rejected
	)

	// QueueDepth tracks waiters currently queued in the rate limiter
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gqlgate_limiter_queue_depth",
			Help: "Number of requests waiting for a rate limiter slot",
		},
	)

	// APIRemainingQuota tracks the last remaining-quota value reported by the API
	APIRemainingQuota = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gqlgate_api_remaining_quota",
			Help: "Remaining hourly quota reported by the remote API",
		},
	)

	// BatchItemFailures tracks batch items that ended as nil placeholders
	BatchItemFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gqlgate_batch_item_failures_total",
			Help: "Total number of batch items that failed after retries",
		},
	)
)
