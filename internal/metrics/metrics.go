// Package metrics provides Prometheus metrics for echoprobe.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "echoprobe"
)

// Metrics contains all Prometheus metrics for the prober.
type Metrics struct {
	// Probe metrics
	ProbesTotal   *prometheus.CounterVec
	ProbeRTT      *prometheus.HistogramVec
	LastProbeTime *prometheus.GaugeVec
	LastRTT       *prometheus.GaugeVec

	// Receive path metrics
	DatagramsDiscarded *prometheus.CounterVec

	gatherer prometheus.Gatherer
	now      func() time.Time
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
// WriteTextfile needs reg to also be a prometheus.Gatherer.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total echo probes by address family and outcome",
		}, []string{"family", "outcome"}),
		ProbeRTT: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Round-trip time of successful echo probes",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"family"}),
		LastProbeTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_probe_timestamp_seconds",
			Help:      "Unix time of the last probe by address family",
		}, []string{"family"}),
		LastRTT: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_rtt_seconds",
			Help:      "Round-trip time of the last successful probe",
		}, []string{"family"}),
		DatagramsDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_discarded_total",
			Help:      "Received ICMP datagrams that were not the awaited reply, by reason",
		}, []string{"family", "reason"}),
		now: time.Now,
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// RecordProbe records the outcome of one probe. rttSeconds is only observed
// for successful probes.
func (m *Metrics) RecordProbe(family, outcome string, rttSeconds float64) {
	m.ProbesTotal.WithLabelValues(family, outcome).Inc()
	m.LastProbeTime.WithLabelValues(family).Set(float64(m.now().UnixNano()) / 1e9)
	if outcome == "success" {
		m.ProbeRTT.WithLabelValues(family).Observe(rttSeconds)
		m.LastRTT.WithLabelValues(family).Set(rttSeconds)
	}
}

// RecordDiscard records a datagram that did not answer the probe.
func (m *Metrics) RecordDiscard(family, reason string) {
	m.DatagramsDiscarded.WithLabelValues(family, reason).Inc()
}

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, for node_exporter's textfile collector. The file is replaced
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return errors.New("metrics registry cannot be gathered")
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}
