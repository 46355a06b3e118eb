package audit

import (
	"encoding/json"
	"time"
)

// Payload is the broker wire form of an Event.
type Payload struct {
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	Subject     string `json:"subject"`
	MarkerID    string `json:"markerId,omitempty"`
	Action      string `json:"action"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	ExitType    string `json:"exitType,omitempty"`
	Policy      string `json:"policy,omitempty"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
	ActorID     string `json:"actorId,omitempty"`
}

// Marshal encodes event for publishing.
func Marshal(event Event) ([]byte, error) {
	category := event.Category
	if category == "" {
		category = AuditEvent(event.Action).Category()
	}
	return json.Marshal(Payload{
		Category:    string(category),
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:     event.Subject,
		MarkerID:    event.MarkerID,
		Action:      event.Action,
		Origin:      event.Origin,
		Destination: event.Destination,
		ExitType:    event.ExitType,
		Policy:      event.Policy,
		Decision:    event.Decision,
		Reason:      event.Reason,
		RequestID:   event.RequestID,
		ActorID:     event.ActorID,
	})
}

// Unmarshal decodes a published event.
func Unmarshal(data []byte) (Event, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, err
	}
	event := Event{
		Category:    EventCategory(p.Category),
		Subject:     p.Subject,
		MarkerID:    p.MarkerID,
		Action:      p.Action,
		Origin:      p.Origin,
		Destination: p.Destination,
		ExitType:    p.ExitType,
		Policy:      p.Policy,
		Decision:    p.Decision,
		Reason:      p.Reason,
		RequestID:   p.RequestID,
		ActorID:     p.ActorID,
	}
	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return Event{}, err
		}
		event.Timestamp = ts
	}
	return event, nil
}
