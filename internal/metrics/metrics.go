package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soless_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soless_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "soless_http_requests_in_flight",
			Help: "HTTP requests currently being served, including waiting chat turns.",
		},
	)

	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soless_completions_total",
			Help: "Total number of completion requests by gateway mode and outcome.",
		},
		[]string{"mode", "status"},
	)

	CompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soless_completion_duration_seconds",
			Help:    "Completion service latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)

	KnowledgeBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soless_knowledge_builds_total",
			Help: "Total number of knowledge blob builds by cache result.",
		},
		[]string{"result"},
	)

	IngestionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soless_ingestion_failures_total",
			Help: "Total number of documents that failed normalization.",
		},
		[]string{"format"},
	)

	ConversationsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soless_conversations_created_total",
			Help: "Total number of conversations created.",
		},
	)

	BotMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soless_bot_messages_total",
			Help: "Total number of messaging-bot messages by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		CompletionsTotal,
		CompletionDuration,
		KnowledgeBuildsTotal,
		IngestionFailuresTotal,
		ConversationsCreatedTotal,
		BotMessagesTotal,
	)
}
