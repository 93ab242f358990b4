// Package fixmetrics exposes delta-fixture generator counters as Prometheus
// metrics.
package fixmetrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "deltafix"
	subsystem = "generator"
)

// Label names for generator metrics.
const (
	labelKind   = "kind"
	labelReason = "reason"
)

// -------------------------------------------------------------------------
// Collector
// -------------------------------------------------------------------------

// Collector holds all generator Prometheus metrics. It implements
// fixture.MetricsReporter and is safe to share between generators.
type Collector struct {
	// Steps counts accepted deltas per kind.
	Steps *prometheus.CounterVec

	// Rejected counts discarded attempts per kind and reason.
	Rejected *prometheus.CounterVec

	// Synthesized counts freshly synthesized candidate addresses.
	Synthesized prometheus.Counter

	// SourceSetSize is the source set cardinality after the latest
	// accepted delta. It describes a single generator; batch runs leave it
	// at zero.
	SourceSetSize prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Steps,
		c.Rejected,
		c.Synthesized,
		c.SourceSetSize,
	)

	return c
}

// newMetrics creates all metrics without registering them.
func newMetrics() *Collector {
	return &Collector{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "steps_total",
			Help:      "Total accepted deltas.",
		}, []string{labelKind}),

		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_attempts_total",
			Help:      "Total delta attempts discarded by policy.",
		}, []string{labelKind, labelReason}),

		Synthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "addresses_synthesized_total",
			Help:      "Total candidate addresses derived by bit mutation.",
		}),

		SourceSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "source_set_size",
			Help:      "Source set cardinality after the latest accepted delta.",
		}),
	}
}

// IncSteps increments the accepted delta counter for kind.
func (c *Collector) IncSteps(kind string) {
	c.Steps.WithLabelValues(kind).Inc()
}

// IncRejected increments the rejected attempt counter.
func (c *Collector) IncRejected(kind, reason string) {
	c.Rejected.WithLabelValues(kind, reason).Inc()
}

// IncSynthesized increments the synthesized address counter.
func (c *Collector) IncSynthesized() {
	c.Synthesized.Inc()
}

// SetSourceSetSize records the current source set cardinality.
func (c *Collector) SetSourceSetSize(n int) {
	c.SourceSetSize.Set(float64(n))
}

// WriteTextfile writes every metric gathered from g to path in the
// Prometheus text exposition format, for node_exporter's textfile
// collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
