// Package metrics exposes Prometheus instruments for query handling.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ipcmatch"

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	emptyResults  prometheus.Counter
	summaries     *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	sections      prometheus.Gauge
}

// New registers every instrument. Process and Go runtime collectors are
// added when runtime is true.
func New(runtime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Ranked queries by the match method of the top result.",
		}, []string{"method"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time spent ranking a query.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		}),
		emptyResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_results_total",
			Help:      "Queries for which no statute matched.",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summary attempts by outcome.",
		}, []string{"outcome"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_reloads_total",
			Help:      "Corpus reloads by outcome.",
		}, []string{"outcome"}),
		sections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_sections",
			Help:      "Sections in the active corpus.",
		}),
	}
	m.registry.MustRegister(m.queries, m.queryDuration, m.emptyResults, m.summaries, m.reloads, m.sections)
	if runtime {
		m.registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
			collectors.NewGoCollector(),
		)
	}
	return m
}

// ObserveQuery records one ranked query. method is empty when nothing matched.
func (m *Metrics) ObserveQuery(method string, d time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "none"
		m.emptyResults.Inc()
	}
	m.queries.WithLabelValues(method).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// Summary outcomes.
const (
	SummaryOK          = "ok"
	SummaryUnavailable = "unavailable"
	SummaryError       = "error"
)

func (m *Metrics) ObserveSummary(outcome string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(outcome).Inc()
}

// ObserveReload fits engine.WithReloadHook.
func (m *Metrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.reloads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetSections(n int) {
	if m == nil {
		return
	}
	m.sections.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
