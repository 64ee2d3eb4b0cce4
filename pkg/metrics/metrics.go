// Package metrics exposes Prometheus instrumentation for a masaar node.
// Every Record method is safe on a nil *Metrics so callers can run
// without instrumentation.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "masaar"

// Metrics contains the node's counters and gauges
type Metrics struct {
	// Codec
	MessagesBuilt *prometheus.CounterVec

	// Routing
	MessagesRouted *prometheus.CounterVec

	// Reliability
	PendingSends prometheus.Gauge
	Resends      prometheus.Counter
	SendsAcked   prometheus.Counter
	SendsFailed  prometheus.Counter
}

// New creates an unregistered Metrics instance
func New() *Metrics {
	return &Metrics{
		MessagesBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "messages_built_total",
				Help:      "Total number of messages built, by type",
			},
			[]string{"type"},
		),

		MessagesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routing",
				Name:      "decisions_total",
				Help:      "Total number of routing decisions, by action and drop reason",
			},
			[]string{"action", "reason"},
		),

		PendingSends: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reliability",
				Name:      "pending_sends",
				Help:      "Reliable sends waiting for an acknowledgement",
			},
		),

		Resends: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reliability",
				Name:      "resends_total",
				Help:      "Total number of reliable DATA resends",
			},
		),

		SendsAcked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reliability",
				Name:      "acked_total",
				Help:      "Total number of reliable sends acknowledged",
			},
		),

		SendsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reliability",
				Name:      "failed_total",
				Help:      "Total number of reliable sends abandoned after max attempts",
			},
		),
	}
}

// Register adds every collector to reg. Collectors already registered
// with reg are accepted.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesBuilt,
		m.MessagesRouted,
		m.PendingSends,
		m.Resends,
		m.SendsAcked,
		m.SendsFailed,
	}
}

// RecordBuilt increments the built counter for a message type tag
func (m *Metrics) RecordBuilt(msgType string) {
	if m == nil {
		return
	}
	m.MessagesBuilt.WithLabelValues(msgType).Inc()
}

// RecordRouted increments the decision counter. reason is empty for
// non-drop actions.
func (m *Metrics) RecordRouted(action, reason string) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(action, reason).Inc()
}

// SetPending updates the in-flight gauge
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingSends.Set(float64(n))
}

// RecordResend increments the resend counter
func (m *Metrics) RecordResend() {
	if m == nil {
		return
	}
	m.Resends.Inc()
}

// RecordAcked increments the acknowledged counter
func (m *Metrics) RecordAcked() {
	if m == nil {
		return
	}
	m.SendsAcked.Inc()
}

// RecordFailed increments the abandoned counter
func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.SendsFailed.Inc()
}
