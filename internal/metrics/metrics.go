package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	RateLimitHitsTotal *prometheus.CounterVec
}

// New регистрирует метрики в собственном registry, чтобы тесты
// могли создавать сколько угодно экземпляров.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikisearch_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"frontend", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wikisearch_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"frontend", "route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikisearch_requests_in_flight",
				Help: "Number of searches currently being processed",
			},
		),

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikisearch_api_requests_total",
				Help: "Total number of wiki API requests",
			},
			[]string{"kind", "status"},
		),
		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wikisearch_api_request_duration_seconds",
				Help:    "Wiki API request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),

		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikisearch_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikisearch_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"kind"},
		),

		RateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikisearch_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"frontend"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordRequest(frontend, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(frontend, route, status).Inc()
	m.RequestDuration.WithLabelValues(frontend, route).Observe(duration.Seconds())
}

// RecordAPIRequest: kind = search | page
func (m *Metrics) RecordAPIRequest(kind, status string, duration time.Duration) {
	m.APIRequestsTotal.WithLabelValues(kind, status).Inc()
	m.APIRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit(kind string) {
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRateLimitHit(frontend string) {
	m.RateLimitHitsTotal.WithLabelValues(frontend).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
