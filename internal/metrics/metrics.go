// Package metrics exposes Prometheus metrics for the landing service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "landing"

// Metrics holds the service's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	submissions      *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	httpRequests     *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Order submission attempts by outcome.",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Outbound order calls by result.",
		}, []string{"result"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of outbound order calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.submissions,
		m.dispatches,
		m.dispatchDuration,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SubmissionObserved counts a submission attempt
func (m *Metrics) SubmissionObserved(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// DispatchObserved counts an outbound call and records its duration
func (m *Metrics) DispatchObserved(result string, elapsed time.Duration) {
	m.dispatches.WithLabelValues(result).Inc()
	m.dispatchDuration.Observe(elapsed.Seconds())
}

// RequestObserved counts an HTTP request
func (m *Metrics) RequestObserved(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
