package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration observes request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "helpdesk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, path and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// ErrorsTotal counts requests that ended in a domain error, by code.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Name:      "errors_total",
		Help:      "Requests rejected with a domain error, by error code.",
	}, []string{"code"})

	// TriageRuns counts completed triage runs by outcome.
	TriageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Name:      "triage_runs_total",
		Help:      "Completed triage runs by outcome (auto_closed, assigned, failed).",
	}, []string{"outcome"})

	// RetryAttempts counts retried operation attempts per policy.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Name:      "retry_attempts_total",
		Help:      "Operation attempts made under a retry policy.",
	}, []string{"policy"})

	// IdempotentReplays counts responses served from the idempotency cache.
	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Name:      "idempotent_replays_total",
		Help:      "Requests answered verbatim from the idempotency cache.",
	})
)
