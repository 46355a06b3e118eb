// Package metrics holds HTTP-level Prometheus metrics shared by all routers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport metrics for the application.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

// New creates and registers the metrics with reg, or the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passage_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "passage_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, statusLabel(status)).Observe(d.Seconds())
	}
}

func (m *Metrics) IncInFlight() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) DecInFlight() {
	if m != nil {
		m.InFlight.Dec()
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
