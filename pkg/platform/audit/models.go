package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers the permanent record of markers issued by
	// this platform.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or unverifiable markers. These feed
	// alerting since they may indicate forgery or tampering.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine evaluation and verification traffic.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the marker service to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the DID of the agent the marker is about.
	Subject     string
	MarkerID    string
	Action      string
	Origin      string
	Destination string
	ExitType    string
	Policy      string
	Decision    string
	Reason      string
	RequestID   string
	// ActorID is the DID that signed when it differs from Subject, e.g. the
	// destination attesting an arrival.
	ActorID string
}

type AuditEvent string

const (
	EventExitMarkerCreated    AuditEvent = "exit_marker_created"
	EventArrivalMarkerCreated AuditEvent = "arrival_marker_created"
	EventAdmissionEvaluated   AuditEvent = "admission_evaluated"
	EventTransferVerified     AuditEvent = "transfer_verified"
	EventVerificationFailed   AuditEvent = "verification_failed"
	EventEnvelopeSealed       AuditEvent = "envelope_sealed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventExitMarkerCreated:    CategoryCompliance,
	EventArrivalMarkerCreated: CategoryCompliance,
	EventEnvelopeSealed:       CategoryCompliance,
	EventVerificationFailed:   CategorySecurity,
	EventAdmissionEvaluated:   CategoryOperations,
	EventTransferVerified:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
