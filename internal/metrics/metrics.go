// Package metrics holds the Prometheus collectors for backend calls made by
// the lotto client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Client records backend call counts and latencies.
type Client struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewClient creates the client collectors on a fresh registry.
func NewClient() *Client {
	c := &Client{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lotto",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Backend calls made by the lotto client.",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lotto",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Latency of backend calls.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"op"},
		),
	}
	c.registry.MustRegister(c.requests, c.duration)
	return c
}

// Observe records one call. A nil receiver is a no-op.
func (c *Client) Observe(op string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	c.requests.WithLabelValues(op, outcome).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Requests returns the counter vector, for tests and dashboards.
func (c *Client) Requests() *prometheus.CounterVec {
	return c.requests
}

// Registry exposes the underlying registry.
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
