// Package metrics exports session activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/netsync/internal/session"
)

const namespace = "netsync"

// Collector implements session.Metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	failures        *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	denied          *prometheus.CounterVec
	registrySize    prometheus.Gauge
	queueDepth      prometheus.Gauge
}

var _ session.Metrics = (*Collector)(nil)

// New creates a collector. With runtime set, Go process and runtime
// collectors are registered alongside the session metrics.
func New(runtime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Inbound events processed, by type.",
		}, []string{"type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "event_failures_total",
			Help:      "Inbound events that failed, by type and error code.",
		}, []string{"type", "code"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "reconciliations_total",
			Help:      "Server updates reconciled against prediction history, by outcome.",
		}, []string{"outcome"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authority",
			Name:      "denied_total",
			Help:      "Outbound requests refused locally for lack of authority.",
		}, []string{"action"}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "objects",
			Help:      "Objects currently registered.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "queue_depth",
			Help:      "Events waiting for the control loop.",
		}),
	}
	c.registry.MustRegister(c.events, c.failures, c.reconciliations, c.denied, c.registrySize, c.queueDepth)
	if runtime {
		c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c
}

func (c *Collector) EventProcessed(kind string) { c.events.WithLabelValues(kind).Inc() }

func (c *Collector) EventFailed(kind string, code session.ErrorCode) {
	c.failures.WithLabelValues(kind, string(code)).Inc()
}

func (c *Collector) Reconciled(outcome string) { c.reconciliations.WithLabelValues(outcome).Inc() }

func (c *Collector) AuthorityDenied(action string) { c.denied.WithLabelValues(action).Inc() }

func (c *Collector) RegistrySize(n int) { c.registrySize.Set(float64(n)) }

func (c *Collector) QueueDepth(n int) { c.queueDepth.Set(float64(n)) }

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
