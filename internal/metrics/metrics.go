package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the API
type Metrics struct {
	// Domain counters
	ObligationsCreated *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	EvidenceUploaded   prometheus.Counter
	EvidenceBytes      prometheus.Counter
	AuditEvents        *prometheus.CounterVec
	Extractions        *prometheus.CounterVec
	RemindersSent      *prometheus.CounterVec

	// HTTP
	RequestDuration *prometheus.HistogramVec
}

// New creates all collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ObligationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covenantops_obligations_created_total",
			Help: "Obligations created, by origin",
		}, []string{"origin"}), // origin: "manual", "extracted"

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covenantops_obligation_transitions_total",
			Help: "Lifecycle transitions applied to obligations",
		}, []string{"event"}),

		EvidenceUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "covenantops_evidence_uploaded_total",
			Help: "Evidence files stored",
		}),

		EvidenceBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "covenantops_evidence_bytes_total",
			Help: "Bytes of evidence written to storage",
		}),

		AuditEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covenantops_audit_events_total",
			Help: "Audit events appended, by entity and action",
		}, []string{"entity", "action"}),

		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covenantops_extractions_total",
			Help: "Extraction runs by provider and outcome",
		}, []string{"provider", "outcome"}),

		RemindersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "covenantops_reminders_sent_total",
			Help: "Reminder digests by outcome",
		}, []string{"outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covenantops_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}
}

// ObligationCreated counts new obligations
func (m *Metrics) ObligationCreated(origin string, n int) {
	if m != nil {
		m.ObligationsCreated.WithLabelValues(origin).Add(float64(n))
	}
}

// Transition counts a lifecycle event
func (m *Metrics) Transition(event string) {
	if m != nil {
		m.Transitions.WithLabelValues(event).Inc()
	}
}

// EvidenceStored records one stored file of the given size
func (m *Metrics) EvidenceStored(size int64) {
	if m != nil {
		m.EvidenceUploaded.Inc()
		m.EvidenceBytes.Add(float64(size))
	}
}

// AuditRecorded counts an appended audit event
func (m *Metrics) AuditRecorded(entity, action string) {
	if m != nil {
		m.AuditEvents.WithLabelValues(entity, action).Inc()
	}
}

// Extraction counts an extraction run
func (m *Metrics) Extraction(provider, outcome string) {
	if m != nil {
		m.Extractions.WithLabelValues(provider, outcome).Inc()
	}
}

// ReminderSent counts a digest delivery attempt
func (m *Metrics) ReminderSent(outcome string) {
	if m != nil {
		m.RemindersSent.WithLabelValues(outcome).Inc()
	}
}

// ObserveRequest records the latency of one HTTP request
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
