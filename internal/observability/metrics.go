package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "login_attempts_total",
		Help:      "Total login attempts by method and outcome",
	}, []string{"method", "outcome"})

	MatchScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "match_scan_duration_seconds",
		Help:      "Duration of a full gallery matching scan",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	CandidatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "match_candidates_skipped_total",
		Help:      "Gallery candidates skipped as malformed during matching",
	})

	EnrollmentOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "enrollment_ops_total",
		Help:      "Enrollment operations by kind and outcome",
	}, []string{"op", "outcome"})

	EmbedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "embed_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
