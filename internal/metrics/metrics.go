// Package metrics exposes faqbot's Prometheus metrics from a dedicated
// registry.
package metrics

import (
	"net/http"
	"time"

	"faqbot/internal/index"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faqbot"

// Metrics implements faq.Observer and collects gateway counters.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    *prometheus.CounterVec
	queryDuration   prometheus.Histogram
	matchScore      prometheus.Histogram
	reloadsTotal    *prometheus.CounterVec
	reloadDuration  prometheus.Histogram
	indexItems      prometheus.Gauge
	indexVocabulary prometheus.Gauge
	indexUsableRows prometheus.Gauge
	indexBuiltAt    prometheus.Gauge
	rateLimited     *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	wsConnections   prometheus.Gauge
}

// New creates Metrics with Go and process collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Answered queries by response kind.",
	}, []string{"kind"})

	m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Time to answer one query.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	m.matchScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_score",
		Help:      "Cosine score of matched queries.",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
	})

	m.reloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reloads_total",
		Help:      "Index reloads by result.",
	}, []string{"result"})

	m.reloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reload_duration_seconds",
		Help:      "Time to rebuild and persist the index.",
		Buckets:   prometheus.DefBuckets,
	})

	m.indexItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_items",
		Help:      "Records in the published index.",
	})

	m.indexVocabulary = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_vocabulary_size",
		Help:      "Terms in the published vectorizer vocabulary.",
	})

	m.indexUsableRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_usable_rows",
		Help:      "Non-zero rows in the published matrix.",
	})

	m.indexBuiltAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_built_timestamp_seconds",
		Help:      "Unix time the published index was fitted.",
	})

	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"tier"})

	m.authFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Rejected admin requests by reason.",
	}, []string{"reason"})

	m.wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Open WebSocket chat connections.",
	})

	m.registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.matchScore,
		m.reloadsTotal,
		m.reloadDuration,
		m.indexItems,
		m.indexVocabulary,
		m.indexUsableRows,
		m.indexBuiltAt,
		m.rateLimited,
		m.authFailures,
		m.wsConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveAnswer records one answered query.
func (m *Metrics) ObserveAnswer(kind string, score float64, elapsed time.Duration) {
	m.queriesTotal.WithLabelValues(kind).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
	if score > 0 {
		m.matchScore.Observe(score)
	}
}

// ObserveReload records one reload attempt.
func (m *Metrics) ObserveReload(err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.reloadsTotal.WithLabelValues(result).Inc()
	m.reloadDuration.Observe(elapsed.Seconds())
}

// ObservePublish updates the index gauges. Register it with
// index.Manager.OnPublish.
func (m *Metrics) ObservePublish(snap *index.Snapshot) {
	m.indexItems.Set(float64(snap.Items()))
	m.indexVocabulary.Set(float64(snap.Vocabulary()))
	m.indexUsableRows.Set(float64(snap.UsableRows))
	m.indexBuiltAt.Set(float64(snap.BuiltAt.Unix()))
}

// ObserveRateLimited counts a request rejected on tier.
func (m *Metrics) ObserveRateLimited(tier string) {
	m.rateLimited.WithLabelValues(tier).Inc()
}

// ObserveAuthFailure counts a rejected admin request.
func (m *Metrics) ObserveAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// SetWebSocketConnections sets the open connection gauge.
func (m *Metrics) SetWebSocketConnections(n int) {
	m.wsConnections.Set(float64(n))
}
