// Package metrics provides Prometheus instrumentation for association
// lifecycle and DIMSE message throughput, grounded on the counter/
// histogram-vec style marmos91-dittofs uses for its lock/connection
// metrics (pkg/metadata/lock/metrics.go).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelRole    = "role" // "acceptor" or "requestor"
	LabelReason  = "reason"
	LabelCommand = "command"
	LabelResult  = "result"
)

// Association roles.
const (
	RoleAcceptor  = "acceptor"
	RoleRequestor = "requestor"
)

// Association close reasons.
const (
	ReasonReleased = "released"
	ReasonAborted  = "aborted"
	ReasonRejected = "rejected"
	ReasonError    = "error"
)

// DIMSE dispatch results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics provides Prometheus metrics for the assoc/server/client packages.
// A nil *Metrics is a no-op (every method checks for nil); a zero Metrics{}
// has no collectors and is not usable. Use NewMetrics to both build and
// register against a prometheus.Registerer.
type Metrics struct {
	associationsTotal  *prometheus.CounterVec
	associationsActive prometheus.Gauge
	associationDuration *prometheus.HistogramVec

	pdusSentTotal     *prometheus.CounterVec
	pdusReceivedTotal *prometheus.CounterVec

	dimseSentTotal     *prometheus.CounterVec
	dimseReceivedTotal *prometheus.CounterVec
	dimseDuration      *prometheus.HistogramVec

	registered bool
}

// NewMetrics creates and registers association/DIMSE metrics. If registry
// is nil, the metrics are created but never registered — useful for tests
// that only want to assert on recorded values through a private registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		associationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dicomnet",
				Subsystem: "association",
				Name:      "total",
				Help:      "Total number of associations by role and close reason.",
			},
			[]string{LabelRole, LabelReason},
		),
		associationsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dicomnet",
				Subsystem: "association",
				Name:      "active",
				Help:      "Number of currently established associations.",
			},
		),
		associationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dicomnet",
				Subsystem: "association",
				Name:      "duration_seconds",
				Help:      "Time an association stayed established before closing.",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{LabelRole},
		),
		pdusSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dicomnet",
				Subsystem: "pdu",
				Name:      "sent_total",
				Help:      "Total PDUs written to the wire, by PDU type.",
			},
			[]string{"pdu_type"},
		),
		pdusReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dicomnet",
				Subsystem: "pdu",
				Name:      "received_total",
				Help:      "Total PDUs read from the wire, by PDU type.",
			},
			[]string{"pdu_type"},
		),
		dimseSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dicomnet",
				Subsystem: "dimse",
				Name:      "sent_total",
				Help:      "Total DIMSE messages sent, by command field.",
			},
			[]string{LabelCommand},
		),
		dimseReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dicomnet",
				Subsystem: "dimse",
				Name:      "received_total",
				Help:      "Total DIMSE messages received, by command field.",
			},
			[]string{LabelCommand},
		),
		dimseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dicomnet",
				Subsystem: "dimse",
				Name:      "handle_duration_seconds",
				Help:      "Time a registered service handler took to process one DIMSE request.",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{LabelCommand, LabelResult},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.associationsTotal,
			m.associationsActive,
			m.associationDuration,
			m.pdusSentTotal,
			m.pdusReceivedTotal,
			m.dimseSentTotal,
			m.dimseReceivedTotal,
			m.dimseDuration,
		)
		m.registered = true
	}

	return m
}

// AssociationEstablished records a newly established association and
// increments the active gauge. role is RoleAcceptor or RoleRequestor.
func (m *Metrics) AssociationEstablished(role string) {
	if m == nil {
		return
	}
	m.associationsActive.Inc()
	_ = role
}

// AssociationClosed records an association leaving the established state
// after having lasted duration, decrementing the active gauge.
func (m *Metrics) AssociationClosed(role, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.associationsTotal.WithLabelValues(role, reason).Inc()
	m.associationsActive.Dec()
	m.associationDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// PDUSent records one PDU written to the wire.
func (m *Metrics) PDUSent(pduType string) {
	if m == nil {
		return
	}
	m.pdusSentTotal.WithLabelValues(pduType).Inc()
}

// PDUReceived records one PDU read from the wire.
func (m *Metrics) PDUReceived(pduType string) {
	if m == nil {
		return
	}
	m.pdusReceivedTotal.WithLabelValues(pduType).Inc()
}

// DIMSESent records one outbound DIMSE command.
func (m *Metrics) DIMSESent(commandField uint16) {
	if m == nil {
		return
	}
	m.dimseSentTotal.WithLabelValues(commandName(commandField)).Inc()
}

// DIMSEReceived records one inbound DIMSE command and how long the
// registered handler took to process it.
func (m *Metrics) DIMSEReceived(commandField uint16, duration time.Duration, err error) {
	if m == nil {
		return
	}
	name := commandName(commandField)
	m.dimseReceivedTotal.WithLabelValues(name).Inc()

	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.dimseDuration.WithLabelValues(name, result).Observe(duration.Seconds())
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	if m == nil || !m.registered {
		return
	}
	m.associationsTotal.Describe(ch)
	m.associationsActive.Describe(ch)
	m.associationDuration.Describe(ch)
	m.pdusSentTotal.Describe(ch)
	m.pdusReceivedTotal.Describe(ch)
	m.dimseSentTotal.Describe(ch)
	m.dimseReceivedTotal.Describe(ch)
	m.dimseDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m == nil || !m.registered {
		return
	}
	m.associationsTotal.Collect(ch)
	m.associationsActive.Collect(ch)
	m.associationDuration.Collect(ch)
	m.pdusSentTotal.Collect(ch)
	m.pdusReceivedTotal.Collect(ch)
	m.dimseSentTotal.Collect(ch)
	m.dimseReceivedTotal.Collect(ch)
	m.dimseDuration.Collect(ch)
}
