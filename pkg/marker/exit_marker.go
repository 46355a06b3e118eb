package marker

import (
	"time"

	"passage/pkg/canonical"
	"passage/pkg/proof"
)

// ExitMarker attests that Subject departed Origin.
type ExitMarker struct {
	Context   string
	ID        string
	Subject   string
	Origin    string
	ExitType  ExitType
	Timestamp time.Time
	Status    string
	Modules   *Bag
	Proof     proof.Proof
}

// Canonical returns the signable view. Every member except the proof is
// covered.
func (m *ExitMarker) Canonical() canonical.Object {
	return canonical.Object{
		"@context":  m.Context,
		"id":        m.ID,
		"subject":   m.Subject,
		"origin":    m.Origin,
		"exitType":  string(m.ExitType),
		"timestamp": canonical.Millis(m.Timestamp),
		"status":    m.Status,
		"modules":   m.Modules.Canonical(),
	}
}

// Module returns the named module, or nil.
func (m *ExitMarker) Module(name string) *Bag {
	b, _ := m.Modules.Bag(name)
	return b
}

// Reason is the free-text departure reason, if any.
func (m *ExitMarker) Reason() string {
	return m.Module(ModuleMetadata).GetString(KeyReason)
}

// Justification is the emergency justification, if any.
func (m *ExitMarker) Justification() string {
	return m.Module(ModuleMetadata).GetString(KeyJustification)
}

// Clone returns a deep copy.
func (m *ExitMarker) Clone() *ExitMarker {
	out := *m
	if m.Modules != nil {
		out.Modules = m.Modules.Clone()
	}
	return &out
}

type exitWire struct {
	Context   string       `json:"@context"`
	ID        string       `json:"id"`
	Subject   string       `json:"subject"`
	Origin    string       `json:"origin"`
	ExitType  ExitType     `json:"exitType"`
	Timestamp string       `json:"timestamp"`
	Status    string       `json:"status"`
	Modules   *Bag         `json:"modules"`
	Proof     *proof.Proof `json:"proof,omitempty"`
}

var (
	exitRequired = []string{"@context", "id", "subject", "origin", "exitType", "timestamp", "status"}
	exitOptional = []string{"modules", "proof"}
)

func (m ExitMarker) MarshalJSON() ([]byte, error) {
	w := exitWire{
		Context:  m.Context,
		ID:       m.ID,
		Subject:  m.Subject,
		Origin:   m.Origin,
		ExitType: m.ExitType,
		Status:   m.Status,
		Modules:  m.Modules,
	}
	if !m.Timestamp.IsZero() {
		w.Timestamp = FormatTimestamp(m.Timestamp)
	}
	if w.Modules == nil {
		w.Modules = NewBag()
	}
	if !m.Proof.IsZero() {
		p := m.Proof
		w.Proof = &p
	}
	return Marshal(w)
}

func (m *ExitMarker) UnmarshalJSON(data []byte) error {
	parsed, err := decodeExit(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

func decodeExit(data []byte) (*ExitMarker, error) {
	obj, err := members(data, exitRequired, exitOptional)
	if err != nil {
		return nil, err
	}
	if err := canonicalStrings(data); err != nil {
		return nil, err
	}
	var m ExitMarker
	if m.Context, err = obj.text("@context"); err != nil {
		return nil, err
	}
	if m.ID, err = obj.text("id"); err != nil {
		return nil, err
	}
	if m.Subject, err = obj.text("subject"); err != nil {
		return nil, err
	}
	if m.Origin, err = obj.text("origin"); err != nil {
		return nil, err
	}
	if m.ExitType, err = obj.exitType("exitType"); err != nil {
		return nil, err
	}
	if m.Timestamp, err = obj.timestamp("timestamp"); err != nil {
		return nil, err
	}
	if m.Status, err = obj.text("status"); err != nil {
		return nil, err
	}
	if m.Modules, err = obj.modules("modules"); err != nil {
		return nil, err
	}
	if m.Proof, err = obj.proof("proof"); err != nil {
		return nil, err
	}
	return &m, nil
}
