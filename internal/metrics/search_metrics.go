package metrics

import (
	"gopower/domain/power"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SearchMetrics records sample size searches as Prometheus metrics. It
// implements app.SearchObserver and is safe to share between searches.
type SearchMetrics struct {
	// lookupsTotal counts power lookups by source (estimator or cache)
	lookupsTotal *prometheus.CounterVec

	// searchesTotal counts completed searches by outcome
	searchesTotal *prometheus.CounterVec

	// evaluationsPerSearch tracks distinct estimator calls per search
	evaluationsPerSearch prometheus.Histogram

	// resultSampleSize tracks the sample size each search returned
	resultSampleSize prometheus.Histogram
}

// NewSearchMetrics registers the search metrics with reg.
func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	factory := promauto.With(reg)

	return &SearchMetrics{
		lookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "power_search_lookups_total",
			Help: "Power lookups during sample size searches by source",
		}, []string{"source"}),
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "power_searches_total",
			Help: "Completed sample size searches by outcome",
		}, []string{"outcome"}),
		evaluationsPerSearch: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "power_search_evaluations",
			Help:    "Distinct sample sizes estimated per search",
			Buckets: prometheus.LinearBuckets(1, 2, 12), // 1 to 23
		}),
		resultSampleSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "power_search_result_sample_size",
			Help:    "Sample size returned by each search",
			Buckets: prometheus.ExponentialBuckets(2, 2, 14), // 2 to 16384
		}),
	}
}

// ObserveEvaluation counts a lookup.
func (m *SearchMetrics) ObserveEvaluation(_ int, _ power.Estimate, cached bool) {
	source := "estimator"
	if cached {
		source = "cache"
	}
	m.lookupsTotal.WithLabelValues(source).Inc()
}

// ObserveResult counts a completed search.
func (m *SearchMetrics) ObserveResult(result *power.SearchResult) {
	outcome := "reached"
	if !result.ThresholdReached() {
		outcome = "unreachable"
	}
	m.searchesTotal.WithLabelValues(outcome).Inc()
	m.evaluationsPerSearch.Observe(float64(len(result.Trace)))
	m.resultSampleSize.Observe(float64(result.SampleSize))
}
