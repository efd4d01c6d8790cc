// Package metrics exposes the Prometheus collectors of the portal edge.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tenant_portal"

// Metrics owns a registry and the collectors recorded by the edge.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	routingDecisions *prometheus.CounterVec
	sessionRefresh   *prometheus.CounterVec
	receiptsParsed   *prometheus.CounterVec
	fxConversions    *prometheus.CounterVec
}

// New creates a Metrics with a private registry. Runtime collectors are
// registered only when withRuntime is set so tests stay cheap.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"service", "method", "path"}),
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Tenant routing decisions by route class and decision kind.",
		}, []string{"class", "decision"}),
		sessionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_refresh_total",
			Help:      "Session refresh attempts by outcome.",
		}, []string{"outcome"}),
		receiptsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_parsed_total",
			Help:      "Receipts parsed, split by whether a total was found.",
		}, []string{"total_found"}),
		fxConversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_conversions_total",
			Help:      "Currency conversions served.",
		}, []string{"from", "to"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.routingDecisions,
		m.sessionRefresh,
		m.receiptsParsed,
		m.fxConversions,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordRoutingDecision counts a tenant routing decision.
func (m *Metrics) RecordRoutingDecision(class, decision string) {
	m.routingDecisions.WithLabelValues(class, decision).Inc()
}

// RecordSessionRefresh counts a refresh attempt. outcome is one of
// "refreshed", "skipped", "cleared", "error".
func (m *Metrics) RecordSessionRefresh(outcome string) {
	m.sessionRefresh.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordReceiptParsed(totalFound bool) {
	m.receiptsParsed.WithLabelValues(strconv.FormatBool(totalFound)).Inc()
}

func (m *Metrics) RecordConversion(from, to string) {
	m.fxConversions.WithLabelValues(from, to).Inc()
}
