// Package metrics содержит Prometheus-метрики сервиса на собственном реестре
// (без go_*/process_* коллекторов по умолчанию).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dvmap-service/internal/standardize/model"
)

type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	columns       *prometheus.CounterVec // по match_tier
	ambiguous     prometheus.Counter
	needsReview   prometheus.Counter
	conversions   *prometheus.CounterVec // по source: http / cli
	convDuration  prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	schemaDVs     prometheus.Gauge
	archiveErrors prometheus.Counter
}

type Option func(*Manager)

func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

func WithHistogramBuckets(b []float64) Option {
	return func(m *Manager) {
		if len(b) > 0 {
			m.buckets = b
		}
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{
		namespace: "dvmap",
		buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.columns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "columns_total",
		Help:      "Columns processed, by match tier",
	}, []string{"tier"})
	m.ambiguous = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "columns_ambiguous_total",
		Help:      "Columns left unresolved because of close fuzzy candidates",
	})
	m.needsReview = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "columns_needs_review_total",
		Help:      "Columns whose inferred metadata is below the review threshold",
	})
	m.conversions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "conversions_total",
		Help:      "Conversion runs, by source",
	}, []string{"source"})
	m.convDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "conversion_duration_seconds",
		Help:      "Time spent resolving and inferring one column set",
		Buckets:   m.buckets,
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by method, route and status",
	}, []string{"method", "route", "status"})
	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.buckets,
	}, []string{"method", "route"})
	m.schemaDVs = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "schema_dvs",
		Help:      "Canonical DVs in the loaded schema",
	})
	m.archiveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "archive_errors_total",
		Help:      "Failed writes to the run archive",
	})
	return m
}

// Все методы допускают nil-получатель: без метрик вызовы ничего не делают.

func (m *Manager) ObserveReport(source string, rep model.ConversionReport, took time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(source).Inc()
	m.convDuration.Observe(took.Seconds())
	for _, c := range rep.Columns {
		m.columns.WithLabelValues(string(c.Resolution.MatchTier)).Inc()
		if c.Resolution.Ambiguous {
			m.ambiguous.Inc()
		}
		if c.Inference != nil && c.Inference.NeedsReview {
			m.needsReview.Inc()
		}
	}
}

func (m *Manager) ObserveHTTP(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Manager) SetSchemaSize(n int) {
	if m == nil {
		return
	}
	m.schemaDVs.Set(float64(n))
}

func (m *Manager) ArchiveFailed() {
	if m == nil {
		return
	}
	m.archiveErrors.Inc()
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler: /metrics для этого реестра.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
