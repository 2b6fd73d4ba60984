// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the spielwerk service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s. Render calls for a full HTML document sit at
// the far end of this range.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spielwerk_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StageTotal counts pipeline stage executions by stage name and outcome
	// (success, error, degraded).
	StageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_pipeline_stage_total",
			Help: "Pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	// StageDuration records per-stage latency in seconds.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spielwerk_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: LLMBuckets,
		},
		[]string{"stage"},
	)

	// RunsTotal counts complete pipeline runs by kind (generate, iterate)
	// and outcome.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_pipeline_runs_total",
			Help: "Pipeline runs",
		},
		[]string{"kind", "status"},
	)

	// ProviderRequestsTotal counts requests sent to backend LLM providers.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spielwerk_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// RetrievalLookupsTotal counts retrieval sidecar lookups by stage and
	// outcome (hit, miss, error). Errors degrade to pass-through, so this
	// counter is the only visibility into a broken vector store.
	RetrievalLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_retrieval_lookups_total",
			Help: "Retrieval sidecar lookups",
		},
		[]string{"stage", "status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spielwerk_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StageTotal,
		StageDuration,
		RunsTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		RetrievalLookupsTotal,
		RateLimitRejectedTotal,
	)
}
