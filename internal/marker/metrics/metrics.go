package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for marker issuance and verification.
type Metrics struct {
	// Markers issued by kind ("exit", "arrival") and exit type
	MarkersCreated *prometheus.CounterVec

	// Verification outcomes by document ("exit", "arrival", "transfer")
	Verifications *prometheus.CounterVec

	// Verification failure codes by document
	VerificationErrors *prometheus.CounterVec

	// Admission outcomes by policy and outcome
	AdmissionDecisions *prometheus.CounterVec

	// Latency of service operations
	OperationLatency *prometheus.HistogramVec
}

// New registers the marker metrics with reg, or the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		MarkersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_markers_created_total",
			Help: "Total markers signed by this instance",
		}, []string{"kind", "exit_type"}),

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_verifications_total",
			Help: "Total verifications by document and result",
		}, []string{"document", "result"}),

		VerificationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_verification_errors_total",
			Help: "Verification failure codes by document",
		}, []string{"document", "code"}),

		AdmissionDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_admission_decisions_total",
			Help: "Admission decisions by policy and outcome",
		}, []string{"policy", "outcome"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passage_operation_duration_seconds",
			Help:    "Duration of marker service operations",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated(kind, exitType string) {
	if m != nil {
		m.MarkersCreated.WithLabelValues(kind, exitType).Inc()
	}
}

// RecordVerification counts a verification and each of its failure codes.
func (m *Metrics) RecordVerification(document string, valid bool, codes []string) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.Verifications.WithLabelValues(document, result).Inc()
	for _, code := range codes {
		m.VerificationErrors.WithLabelValues(document, code).Inc()
	}
}

func (m *Metrics) IncrementAdmission(policy, outcome string) {
	if m != nil {
		m.AdmissionDecisions.WithLabelValues(policy, outcome).Inc()
	}
}

func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
