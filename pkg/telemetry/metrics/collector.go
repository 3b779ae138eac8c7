package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qwen2api"

// Collector registers and records all Prometheus metrics of the proxy.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	uploadsTotal    *prometheus.CounterVec
	activeStreams   prometheus.Gauge
	credentialPool  *prometheus.GaugeVec
}

// NewCollector creates a collector on the given registry. A nil
// registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served, by endpoint and HTTP status.",
		}, []string{"endpoint", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency, by endpoint.",
			// Chat requests stream for a long time; the upper buckets
			// cover full generations, not just first byte.
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),

		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream failures, by class (auth, server, transport).",
		}, []string{"class"}),

		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Asset uploads, by outcome.",
		}, []string{"outcome"}),

		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "SSE streams currently open to clients.",
		}),

		credentialPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credentials",
			Help:      "Credential pool sizes, by kind and state.",
		}, []string{"kind", "state"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.upstreamErrors,
		c.uploadsTotal,
		c.activeStreams,
		c.credentialPool,
	)

	return c
}

// RecordRequest records one served request.
func (c *Collector) RecordRequest(endpoint string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamError records one upstream failure.
func (c *Collector) RecordUpstreamError(class string) {
	c.upstreamErrors.WithLabelValues(class).Inc()
}

// RecordUpload records one asset upload outcome.
func (c *Collector) RecordUpload(outcome string) {
	c.uploadsTotal.WithLabelValues(outcome).Inc()
}

// StreamStarted and StreamEnded track open SSE streams.
func (c *Collector) StreamStarted() { c.activeStreams.Inc() }

// StreamEnded decrements the open stream gauge.
func (c *Collector) StreamEnded() { c.activeStreams.Dec() }

// SetPoolSize updates one credential pool gauge pair.
func (c *Collector) SetPoolSize(kind string, valid, invalid int) {
	c.credentialPool.WithLabelValues(kind, "valid").Set(float64(valid))
	c.credentialPool.WithLabelValues(kind, "invalid").Set(float64(invalid))
}

// Handler returns the scrape endpoint handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
