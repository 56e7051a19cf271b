package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// toolInvocations tracks tool calls by name and outcome.
	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_tool_invocations_total",
		Help: "Total number of tool invocations by tool and status",
	}, []string{"tool", "status"}) // status: ok, tool_error, bad_request, error

	// toolDuration tracks tool call latency.
	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcp_tool_duration_seconds",
		Help:    "Tool invocation latency by tool",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"tool"})

	// cacheHits tracks cache hits per cache.
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_cache_hits_total",
		Help: "Total number of cache hits by cache",
	}, []string{"cache"}) // cache: search, embed

	// cacheMisses tracks cache misses per cache.
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_cache_misses_total",
		Help: "Total number of cache misses by cache",
	}, []string{"cache"})

	// searchResults tracks the result counts returned by search.
	searchResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcp_search_results_count",
		Help:    "Number of results returned by search path",
		Buckets: []float64{0, 1, 2, 5, 8, 10, 20, 50},
	}, []string{"path"}) // path: legacy, v2

	// basketOperations tracks basket mutations by operation and outcome.
	basketOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_basket_operations_total",
		Help: "Total number of basket operations by operation and status",
	}, []string{"operation", "status"})

	// payloadTruncations tracks responses cut down by the output size cap.
	payloadTruncations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_payload_truncations_total",
		Help: "Total number of responses truncated by the payload size cap",
	})
)

// RecordToolInvocation records a tool call outcome and its latency.
func RecordToolInvocation(tool, status string, duration time.Duration) {
	toolInvocations.WithLabelValues(tool, status).Inc()
	toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCacheHit records a hit on the named cache.
func RecordCacheHit(cache string) {
	cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a miss on the named cache.
func RecordCacheMiss(cache string) {
	cacheMisses.WithLabelValues(cache).Inc()
}

// RecordSearchResults records the result count for a search path.
func RecordSearchResults(path string, count int) {
	searchResults.WithLabelValues(path).Observe(float64(count))
}

// RecordBasketOperation records a basket mutation outcome.
func RecordBasketOperation(operation, status string) {
	basketOperations.WithLabelValues(operation, status).Inc()
}

// RecordPayloadTruncation records a response trimmed by the size cap.
func RecordPayloadTruncation() {
	payloadTruncations.Inc()
}
