// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal           *prometheus.CounterVec
	documentsStoredTotal *prometheus.CounterVec
	linkFailuresTotal    *prometheus.CounterVec
	breakerTripsTotal    *prometheus.CounterVec
	termsTotal           *prometheus.CounterVec
	activeTerms          prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "litcrawler_pages_total",
				Help: "Total number of search results pages fetched, labeled by term.",
			},
			[]string{"term"},
		)

		documentsStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "litcrawler_documents_stored_total",
				Help: "Total number of documents persisted, labeled by term.",
			},
			[]string{"term"},
		)

		linkFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "litcrawler_link_failures_total",
				Help: "Total number of skipped candidate links, labeled by term and reason.",
			},
			[]string{"term", "reason"},
		)

		breakerTripsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "litcrawler_breaker_trips_total",
				Help: "Total number of circuit-breaker trips, labeled by term.",
			},
			[]string{"term"},
		)

		termsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "litcrawler_terms_total",
				Help: "Total number of term crawls finished, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeTerms = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "litcrawler_active_terms",
				Help: "Number of term crawls currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one fetched results page for the term.
func ObservePage(term string) {
	pagesTotal.WithLabelValues(term).Inc()
}

// ObserveDocumentStored counts one persisted document for the term.
func ObserveDocumentStored(term string) {
	documentsStoredTotal.WithLabelValues(term).Inc()
}

// ObserveLinkFailure counts one skipped link for the term.
func ObserveLinkFailure(term, reason string) {
	linkFailuresTotal.WithLabelValues(term, reason).Inc()
}

// ObserveBreakerTrip counts one circuit-breaker trip for the term.
func ObserveBreakerTrip(term string) {
	breakerTripsTotal.WithLabelValues(term).Inc()
}

// ObserveTerm counts one finished term crawl with the given outcome.
func ObserveTerm(outcome string) {
	termsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveTerms increments the running-crawls gauge.
func IncActiveTerms() {
	activeTerms.Inc()
}

// DecActiveTerms decrements the running-crawls gauge.
func DecActiveTerms() {
	activeTerms.Dec()
}
