package metrics

import "github.com/prometheus/client_golang/prometheus"

// Web research Prometheus metrics.
var (
	WebSearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "web_search_requests_total",
			Help:      "Total web search provider calls",
		},
		[]string{"status"},
	)

	WebSearchRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Name:      "web_search_request_duration_seconds",
			Help:      "Web search provider call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	WebFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "web_fetch_total",
			Help:      "Total web page fetch attempts",
		},
		[]string{"outcome"}, // "success" / "timeout" / "unreachable" / "blocked" / "error"
	)

	ResearchPartialTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "research_partial_total",
			Help:      "Research rounds that produced fewer sources than the configured minimum",
		},
	)
)

var researchMetricsRegistered bool

// RegisterResearchMetrics registers web research metrics. Must be called once from main.
func RegisterResearchMetrics() {
	if researchMetricsRegistered {
		return
	}
	prometheus.MustRegister(WebSearchRequestsTotal)
	prometheus.MustRegister(WebSearchRequestDuration)
	prometheus.MustRegister(WebFetchTotal)
	prometheus.MustRegister(ResearchPartialTotal)
	researchMetricsRegistered = true
}
