// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request, token and registration-rollback metrics.
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	tokensIssued  *prometheus.CounterVec
	compensations *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_http_requests_total",
			Help: "HTTP responses by route pattern, method and status code.",
		}, []string{"route", "method", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_tokens_issued_total",
			Help: "Access tokens issued, split by whether a refresh token was included.",
		}, []string{"refresh"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_compensations_total",
			Help: "Partially applied registrations that were rolled back.",
		}, []string{"operation"}),
	}
	reg.MustRegister(c.requests, c.latency, c.tokensIssued, c.compensations)
	return c
}

func (c *Collector) RecordRequest(route, method string, statusCode int, d time.Duration) {
	c.requests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) TokenIssued(withRefreshToken bool) {
	c.tokensIssued.WithLabelValues(strconv.FormatBool(withRefreshToken)).Inc()
}

func (c *Collector) Compensation(operation string) {
	c.compensations.WithLabelValues(operation).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
