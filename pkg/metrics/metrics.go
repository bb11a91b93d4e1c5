// Package metrics holds the Prometheus collectors for the recommender. Every
// method is safe on a nil *Metrics so callers can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "menurec"

// DefaultBuckets are the default latency buckets (in seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics is the set of collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	Recommendations *prometheus.CounterVec
	WeatherCalls    *prometheus.CounterVec
	WeatherLatency  prometheus.Histogram
	CatalogItems    prometheus.Gauge
	CatalogReloads  *prometheus.CounterVec
	Events          *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommend calls by outcome.",
		}, []string{"outcome"}),
		WeatherCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_calls_total",
			Help:      "Outbound weather lookups by outcome.",
		}, []string{"outcome"}),
		WeatherLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_call_duration_seconds",
			Help:      "Latency of outbound weather lookups.",
			Buckets:   DefaultBuckets,
		}),
		CatalogItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_items",
			Help:      "Items in the live catalog index.",
		}),
		CatalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reload attempts by result.",
		}, []string{"result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Recommendation events by publish result.",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Inbound HTTP request latency.",
			Buckets:   DefaultBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Recommendations,
		m.WeatherCalls,
		m.WeatherLatency,
		m.CatalogItems,
		m.CatalogReloads,
		m.Events,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Recommendation counts one Recommend call.
func (m *Metrics) Recommendation(outcome string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(outcome).Inc()
}

// WeatherCall records one outbound weather lookup.
func (m *Metrics) WeatherCall(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.WeatherCalls.WithLabelValues(outcome).Inc()
	m.WeatherLatency.Observe(time.Since(started).Seconds())
}

// CatalogLoaded records a reload attempt and, on success, the new size.
func (m *Metrics) CatalogLoaded(items int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CatalogReloads.WithLabelValues("error").Inc()
		return
	}
	m.CatalogReloads.WithLabelValues("ok").Inc()
	m.CatalogItems.Set(float64(items))
}

// Event counts one event publication.
func (m *Metrics) Event(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Events.WithLabelValues(result).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
