package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"roxy-hq/roxy/pkg/config"
)

// Collector is the orchestrator for all Prometheus metrics in Roxy. It
// manages metric registration and provides a unified recording interface for
// the gateway, prober, and selector.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Gateway request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Probe sweep metrics
	probesTotal  *prometheus.CounterVec
	probeLatency prometheus.Histogram
	sweepsTotal  *prometheus.CounterVec

	// Selection metrics
	selectionsTotal *prometheus.CounterVec
}

// NewCollector creates a metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Resolved locally; the caller's config is not touched.
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "roxy"
	}
	requestBuckets := cfg.RequestDurationBuckets
	if len(requestBuckets) == 0 {
		// Forwarded requests ride residential proxies; latencies stretch
		// well past what a direct origin exchange would show.
		requestBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	}
	probeBuckets := cfg.ProbeLatencyBuckets
	if len(probeBuckets) == 0 {
		// Probe RTTs under the default 300ms ceiling plus headroom.
		probeBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1.0, 3.0}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of forwarded requests by strategy and status code",
			},
			[]string{"strategy", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Duration of forwarded requests in seconds",
				Buckets:   requestBuckets,
			},
			[]string{"strategy"},
		),

		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prober",
				Name:      "probes_total",
				Help:      "Total number of latency probes by result",
			},
			[]string{"result"},
		),

		probeLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "prober",
				Name:      "probe_latency_seconds",
				Help:      "Measured round-trip time of successful probes in seconds",
				Buckets:   probeBuckets,
			},
		),

		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "prober",
				Name:      "sweeps_total",
				Help:      "Total number of probe sweeps by result",
			},
			[]string{"result"},
		),

		selectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "selector",
				Name:      "selections_total",
				Help:      "Total number of upstream selections by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.probesTotal,
		c.probeLatency,
		c.sweepsTotal,
		c.selectionsTotal,
	)

	return c
}

// RecordRequest records a completed gateway request.
func (c *Collector) RecordRequest(strategy, status string, duration time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.requestsTotal.WithLabelValues(strategy, status).Inc()
	c.requestDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordProbe records one probe outcome. Result is "success", "unreachable",
// or "timeout". Latency is observed only for successful probes.
func (c *Collector) RecordProbe(result string, latency time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.probesTotal.WithLabelValues(result).Inc()
	if result == "success" {
		c.probeLatency.Observe(latency.Seconds())
	}
}

// RecordSweep records a completed sweep. Result is "completed" or "timeout".
func (c *Collector) RecordSweep(result string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.sweepsTotal.WithLabelValues(result).Inc()
}

// RecordSelection records a selection outcome. Outcome is "selected",
// "unavailable", or "error".
func (c *Collector) RecordSelection(strategy, outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.selectionsTotal.WithLabelValues(strategy, outcome).Inc()
}

// Registry returns the underlying Prometheus registry, primarily for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
