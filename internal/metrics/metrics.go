package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results recorded under relay_cycles_total.
const (
	ResultOK            = "ok"
	ResultAuthFailed    = "auth_failed"
	ResultFetchFailed   = "fetch_failed"
	ResultDeliveryError = "delivery_failed"
	ResultPanic         = "panic"
)

// Collector owns the relay's Prometheus collectors on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry      *prometheus.Registry
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	authFailures  prometheus.Counter
	fetchFailures prometheus.Counter
	notifications *prometheus.CounterVec
	seen          prometheus.Gauge
}

// New creates a collector and registers the relay metrics plus the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cycles_total",
			Help: "Poll cycles executed, by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_cycle_duration_seconds",
			Help:    "Wall time of a poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_auth_failures_total",
			Help: "Failed bearer token exchanges.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_fetch_failures_total",
			Help: "Failed assignment list retrievals.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_notifications_total",
			Help: "Assignment announcements attempted, by result.",
		}, []string{"result"}),
		seen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_seen_assignments",
			Help: "Assignment IDs recorded in the seen registry.",
		}),
	}

	c.registry.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.authFailures,
		c.fetchFailures,
		c.notifications,
		c.seen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) ObserveCycle(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(duration.Seconds())
}

func (c *Collector) AuthFailure() {
	if c == nil {
		return
	}
	c.authFailures.Inc()
}

func (c *Collector) FetchFailure() {
	if c == nil {
		return
	}
	c.fetchFailures.Inc()
}

// Notification records one delivery attempt.
func (c *Collector) Notification(delivered bool) {
	if c == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	c.notifications.WithLabelValues(result).Inc()
}

func (c *Collector) SetSeen(n int) {
	if c == nil {
		return
	}
	c.seen.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
