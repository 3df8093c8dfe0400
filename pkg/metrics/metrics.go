// Package metrics defines the Prometheus collectors for the question
// answering service and exposes an HTTP handler for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	StageLatency         *prometheus.HistogramVec
	StageResults         *prometheus.HistogramVec
	IDFTableSize         *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusDocuments      prometheus.Gauge
}

// New creates the collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry(); binaries pass prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qa_queries_total",
				Help: "Total queries by outcome (answered, no_document, no_sentence, empty_query, error).",
			},
			[]string{"outcome"},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qa_stage_latency_seconds",
				Help:    "Latency of each retrieval stage in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"stage"},
		),
		StageResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qa_stage_results",
				Help:    "Number of units selected by each ranking stage.",
				Buckets: []float64{0, 1, 2, 5, 10, 25},
			},
			[]string{"stage"},
		),
		IDFTableSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qa_idf_table_terms",
				Help:    "Distinct terms in each computed idf table.",
				Buckets: prometheus.ExponentialBuckets(8, 4, 8),
			},
			[]string{"stage"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qa_cache_hits_total",
				Help: "Total number of answer cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qa_cache_misses_total",
				Help: "Total number of answer cache misses.",
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "qa_corpus_documents",
				Help: "Number of documents in the loaded corpus.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.StageLatency,
		m.StageResults,
		m.IDFTableSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusDocuments,
	)

	return m
}
