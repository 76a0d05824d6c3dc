package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metric vectors, registered on the default registry by promauto.

var (
	// TraversalsTotal counts finished traversals by outcome
	// (ok, empty, timeout, unavailable, configuration, invalid, closed, error).
	TraversalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_traversals_total",
			Help: "Total number of traversals executed",
		},
		[]string{"status"},
	)

	// TraversalDuration measures end-to-end traversal latency.
	TraversalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_traversal_duration_seconds",
			Help:    "Duration of traversals in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	// StepRequestsTotal counts QueryRequests dispatched to each backend.
	StepRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_step_requests_total",
			Help: "Total number of query requests dispatched to backends",
		},
		[]string{"backend"},
	)

	// FailedRequestsTotal counts requests a backend absorbed as partial failures.
	FailedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_failed_requests_total",
			Help: "Total number of query requests that failed inside a backend",
		},
		[]string{"backend"},
	)

	// PartitionDuration measures one Fetches call on one backend.
	PartitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_partition_fetch_duration_seconds",
			Help:    "Duration of a backend Fetches call in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend"},
	)

	// StepEdges tracks how many edges a merged step produced.
	StepEdges = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_step_edges",
			Help:    "Number of edges produced by a traversal step",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// HttpRequestsTotal counts HTTP requests by method, path and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures server response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)
