// Package metrics registers the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors. A nil *Metrics is valid and makes
// every recording method a no-op, so wiring stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	eventsFetched  prometheus.Counter
	eventsByClass  *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	queryFailures  prometheus.Counter
	pagesFetched   prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	regionsMatched prometheus.Counter
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		eventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fernweh_events_fetched_total",
			Help: "Raw events returned by relay queries",
		}),
		eventsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fernweh_events_classified_total",
			Help: "Classification outcomes by class",
		}, []string{"class"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fernweh_relay_query_duration_seconds",
			Help:    "Relay query duration",
			Buckets: prometheus.DefBuckets,
		}),
		queryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fernweh_relay_query_failures_total",
			Help: "Relay queries that returned no data due to error or timeout",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fernweh_feed_pages_fetched_total",
			Help: "Pages fetched across pagination sessions",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fernweh_cache_hits_total",
			Help: "Feed cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fernweh_cache_misses_total",
			Help: "Feed cache misses",
		}),
		regionsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fernweh_region_matches_total",
			Help: "Events kept by a region filter",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsFetched,
		m.eventsByClass,
		m.queryDuration,
		m.queryFailures,
		m.pagesFetched,
		m.cacheHits,
		m.cacheMisses,
		m.regionsMatched,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records one relay query.
func (m *Metrics) ObserveQuery(d time.Duration, fetched int, err error) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(d.Seconds())
	if err != nil {
		m.queryFailures.Inc()
		return
	}
	m.eventsFetched.Add(float64(fetched))
}

// IncClass counts one classification outcome.
func (m *Metrics) IncClass(class string) {
	if m == nil {
		return
	}
	m.eventsByClass.WithLabelValues(class).Inc()
}

// IncPage counts one fetched pagination page.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

// IncCache counts a cache lookup.
func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// IncRegionMatch counts an event kept by a region filter.
func (m *Metrics) IncRegionMatch() {
	if m == nil {
		return
	}
	m.regionsMatched.Inc()
}
