// Package metrics holds the Prometheus collectors for the fetcher and the
// content endpoint. A nil *Metrics records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors.
type Metrics struct {
	registry *prometheus.Registry

	tierAttempts *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	storeRows    prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcast",
			Name:      "fetch_tier_attempts_total",
			Help:      "Content fetch attempts per tier and outcome.",
		}, []string{"tier", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcast",
			Name:      "refresh_total",
			Help:      "Cache refreshes by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendcast",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trendcast",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storeRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trendcast",
			Name:      "store_rows",
			Help:      "Rows currently held in the content cache.",
		}),
	}

	m.registry.MustRegister(
		m.tierAttempts,
		m.refreshes,
		m.httpRequests,
		m.httpDuration,
		m.storeRows,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TierAttempt records one fetch tier outcome ("hit", "empty", "error").
func (m *Metrics) TierAttempt(tier, outcome string) {
	if m == nil {
		return
	}
	m.tierAttempts.WithLabelValues(tier, outcome).Inc()
}

// Refresh records a refresh outcome.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// StoreRows sets the row gauge.
func (m *Metrics) StoreRows(n int64) {
	if m == nil {
		return
	}
	m.storeRows.Set(float64(n))
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
