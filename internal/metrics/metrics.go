package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route template and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqforge_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqforge_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// AICalls counts outbound provider calls by provider and outcome (ok, error, missing_key).
	AICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqforge_ai_calls_total",
		Help: "Outbound AI provider calls by provider and outcome",
	}, []string{"provider", "outcome"})

	AIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqforge_ai_call_duration_seconds",
		Help:    "AI provider call latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"provider"})

	JobsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reqforge_jobs_queued",
		Help: "Background AI jobs waiting for a worker",
	})
)
