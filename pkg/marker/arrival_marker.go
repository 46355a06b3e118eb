package marker

import (
	"time"

	"passage/pkg/canonical"
	"passage/pkg/proof"
)

// ArrivalMarker attests that Subject arrived at Destination after the
// departure recorded by ExitMarkerID.
type ArrivalMarker struct {
	Context      string
	ID           string
	Subject      string
	Destination  string
	Timestamp    time.Time
	ExitMarkerID string
	// Attester is the DID that signed the arrival when it is not the
	// arriving subject.
	Attester string
	Status   string
	Proof    proof.Proof
}

func (a *ArrivalMarker) Canonical() canonical.Object {
	obj := canonical.Object{
		"@context":     a.Context,
		"id":           a.ID,
		"subject":      a.Subject,
		"destination":  a.Destination,
		"timestamp":    canonical.Millis(a.Timestamp),
		"exitMarkerId": a.ExitMarkerID,
		"status":       a.Status,
	}
	if a.Attester != "" {
		obj["attester"] = a.Attester
	}
	return obj
}

// Signer is the DID whose key must have produced the proof.
func (a *ArrivalMarker) Signer() string {
	if a.Attester != "" {
		return a.Attester
	}
	return a.Subject
}

func (a *ArrivalMarker) Clone() *ArrivalMarker {
	out := *a
	return &out
}

type arrivalWire struct {
	Context      string       `json:"@context"`
	ID           string       `json:"id"`
	Subject      string       `json:"subject"`
	Destination  string       `json:"destination"`
	Timestamp    string       `json:"timestamp"`
	ExitMarkerID string       `json:"exitMarkerId"`
	Attester     string       `json:"attester,omitempty"`
	Status       string       `json:"status"`
	Proof        *proof.Proof `json:"proof,omitempty"`
}

var (
	arrivalRequired = []string{"@context", "id", "subject", "destination", "timestamp", "exitMarkerId", "status"}
	arrivalOptional = []string{"attester", "proof"}
)

func (a ArrivalMarker) MarshalJSON() ([]byte, error) {
	w := arrivalWire{
		Context:      a.Context,
		ID:           a.ID,
		Subject:      a.Subject,
		Destination:  a.Destination,
		ExitMarkerID: a.ExitMarkerID,
		Attester:     a.Attester,
		Status:       a.Status,
	}
	if !a.Timestamp.IsZero() {
		w.Timestamp = FormatTimestamp(a.Timestamp)
	}
	if !a.Proof.IsZero() {
		p := a.Proof
		w.Proof = &p
	}
	return Marshal(w)
}

func (a *ArrivalMarker) UnmarshalJSON(data []byte) error {
	parsed, err := decodeArrival(data)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

func decodeArrival(data []byte) (*ArrivalMarker, error) {
	obj, err := members(data, arrivalRequired, arrivalOptional)
	if err != nil {
		return nil, err
	}
	if err := canonicalStrings(data); err != nil {
		return nil, err
	}
	var a ArrivalMarker
	if a.Context, err = obj.text("@context"); err != nil {
		return nil, err
	}
	if a.ID, err = obj.text("id"); err != nil {
		return nil, err
	}
	if a.Subject, err = obj.text("subject"); err != nil {
		return nil, err
	}
	if a.Destination, err = obj.text("destination"); err != nil {
		return nil, err
	}
	if a.Timestamp, err = obj.timestamp("timestamp"); err != nil {
		return nil, err
	}
	if a.ExitMarkerID, err = obj.text("exitMarkerId"); err != nil {
		return nil, err
	}
	if a.Attester, err = obj.text("attester"); err != nil {
		return nil, err
	}
	if a.Status, err = obj.text("status"); err != nil {
		return nil, err
	}
	if a.Proof, err = obj.proof("proof"); err != nil {
		return nil, err
	}
	return &a, nil
}
