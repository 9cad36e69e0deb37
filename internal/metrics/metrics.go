// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsAggregator/internal/ports"
)

const namespace = "newsaggregator"

// Article outcomes counted per source.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the ingestion collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesTotal *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

var _ ports.IngestionMetrics = (*Metrics)(nil)

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ArticlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_articles_total",
				Help:      "Articles seen by ingestion, by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_runs_total",
				Help:      "Ingestion runs per source and status",
			},
			[]string{"source", "status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time spent fetching one source response, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 11),
			},
			[]string{"source"},
		),
	}
}

// ObserveFetch records how long a fetch took.
func (m *Metrics) ObserveFetch(source string, elapsed time.Duration) {
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// CountArticle increments the per-outcome article counter.
func (m *Metrics) CountArticle(source, outcome string) {
	m.ArticlesTotal.WithLabelValues(source, outcome).Inc()
}

// CountRun records a finished run.
func (m *Metrics) CountRun(source string, succeeded bool) {
	status := "failure"
	if succeeded {
		status = "success"
	}
	m.RunsTotal.WithLabelValues(source, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
