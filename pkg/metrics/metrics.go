// Package metrics defines the Prometheus metric collectors used across
// the vault and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the vault.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ConnectionsActive prometheus.Gauge

	DocsIngestedTotal   prometheus.Counter
	TokensIngestedTotal prometheus.Counter
	BondsIngestedTotal  prometheus.Counter

	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheFillsTotal         prometheus.Counter
	CacheInvalidationsTotal prometheus.Counter

	EventsEmittedTotal *prometheus.CounterVec
	EventsDroppedTotal *prometheus.CounterVec
	FoldsTotal         *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_requests_total",
				Help: "Total protocol requests by operation and status.",
			},
			[]string{"op", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_request_duration_seconds",
				Help:    "Protocol request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_connections_active",
				Help: "Protocol connections currently being served.",
			},
		),
		DocsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_docs_ingested_total",
				Help: "Total documents stored.",
			},
		),
		TokensIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_tokens_ingested_total",
				Help: "Total token occurrences stored.",
			},
		),
		BondsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_bonds_ingested_total",
				Help: "Total distinct per-document bonds stored.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_cache_hits_total",
				Help: "Total cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_cache_misses_total",
				Help: "Total cache misses.",
			},
		),
		CacheFillsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_cache_fills_total",
				Help: "Total cache entries written after an authoritative fetch.",
			},
		),
		CacheInvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_cache_invalidations_total",
				Help: "Total cache keys invalidated.",
			},
		),
		EventsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_events_emitted_total",
				Help: "Total events published by topic.",
			},
			[]string{"topic"},
		),
		EventsDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_events_dropped_total",
				Help: "Total events dropped because the emitter buffer was full.",
			},
			[]string{"topic"},
		),
		FoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_corpus_folds_total",
				Help: "Total document events folded into the corpus bond graph, by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vault_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ConnectionsActive,
		m.DocsIngestedTotal,
		m.TokensIngestedTotal,
		m.BondsIngestedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheFillsTotal,
		m.CacheInvalidationsTotal,
		m.EventsEmittedTotal,
		m.EventsDroppedTotal,
		m.FoldsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
