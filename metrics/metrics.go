// Package metrics provides Prometheus metrics collection for the coverage API.
// It exports HTTP request metrics plus domain metrics for the coverage
// pipeline:
//   - coverage_checks_total: Counter with outcome and source labels
//   - resolver_timeouts_total: Counter of remote resolver timeouts
//   - research_cache_events_total: Counter with hit/miss result label
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	CoverageChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coverage_checks_total",
			Help: "Coverage checks by outcome and winning data source",
		},
		[]string{"outcome", "source"},
	)

	ResolverTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_timeouts_total",
			Help: "Remote coverage resolver calls that hit the timeout budget",
		},
	)

	ResearchCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_cache_events_total",
			Help: "Web research cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	NormalizerFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "normalizer_fallbacks_total",
			Help: "Normalizations that fell back to echoing raw input",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(CoverageChecksTotal)
	prometheus.MustRegister(ResolverTimeoutsTotal)
	prometheus.MustRegister(ResearchCacheEvents)
	prometheus.MustRegister(NormalizerFallbacksTotal)
}
