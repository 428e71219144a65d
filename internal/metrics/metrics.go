package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grammarbot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grammarbot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grammarbot_gate_decisions_total",
			Help: "Authorization decisions by kind.",
		},
		[]string{"decision"},
	)

	QuotaConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grammarbot_quota_consumed_total",
			Help: "Requests charged against a user's quota, by tier.",
		},
		[]string{"tier"},
	)

	QuotaRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grammarbot_quota_rollovers_total",
			Help: "Usage windows reset lazily on access.",
		},
	)

	QuotaFailOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grammarbot_quota_fail_open_total",
			Help: "Quota checks allowed because the store was unreachable.",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grammarbot_llm_requests_total",
			Help: "Completion requests sent to the LLM provider.",
		},
		[]string{"status"},
	)

	LLMRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grammarbot_llm_request_duration_seconds",
			Help:    "LLM completion latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	UpdatesHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grammarbot_updates_handled_total",
			Help: "Telegram updates processed, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GateDecisionsTotal,
		QuotaConsumedTotal,
		QuotaRolloversTotal,
		QuotaFailOpenTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
		UpdatesHandledTotal,
	)
}
