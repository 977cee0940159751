// Package metrics defines the Prometheus metric collectors used by the page
// index and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the page index.
type Metrics struct {
	DocsIndexedTotal         prometheus.Counter
	DocsRemovedTotal         prometheus.Counter
	DocumentCount            prometheus.Gauge
	TermCount                prometheus.Gauge
	SearchQueriesTotal       *prometheus.CounterVec
	SearchLatency            *prometheus.HistogramVec
	SearchResultsCount       prometheus.Histogram
	CacheHitsTotal           prometheus.Counter
	CacheMissesTotal         prometheus.Counter
	IndexFlushesTotal        *prometheus.CounterVec
	RebuildsTotal            *prometheus.CounterVec
	SnapshotCorruptionsTotal prometheus.Counter
	PageEventsTotal          *prometheus.CounterVec
	HTTPRequestsTotal        *prometheus.CounterVec
	HTTPRequestDuration      *prometheus.HistogramVec
	HTTPRequestsInFlight     prometheus.Gauge
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pageindex_docs_indexed_total",
				Help: "Total pages indexed, including replacements.",
			},
		),
		DocsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pageindex_docs_removed_total",
				Help: "Total pages removed by explicit request.",
			},
		),
		DocumentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pageindex_documents",
				Help: "Number of documents currently in the index.",
			},
		),
		TermCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pageindex_terms",
				Help: "Number of distinct terms in the inverted index.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageindex_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageindex_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pageindex_search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pageindex_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pageindex_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageindex_flushes_total",
				Help: "Total snapshot writes by status.",
			},
			[]string{"status"},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageindex_rebuilds_total",
				Help: "Total index rebuilds by status.",
			},
			[]string{"status"},
		),
		SnapshotCorruptionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pageindex_snapshot_corruptions_total",
				Help: "Snapshots found unreadable at load and replaced by an empty index.",
			},
		),
		PageEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageindex_page_events_total",
				Help: "Page events consumed from Kafka by action and status.",
			},
			[]string{"action", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageindex_http_requests_total",
				Help: "Total API requests by method, path and status code.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageindex_http_request_duration_seconds",
				Help:    "API request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pageindex_http_requests_in_flight",
				Help: "API requests currently being served.",
			},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.DocsRemovedTotal,
		m.DocumentCount,
		m.TermCount,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexFlushesTotal,
		m.RebuildsTotal,
		m.SnapshotCorruptionsTotal,
		m.PageEventsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g. A nil gatherer
// serves the default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
