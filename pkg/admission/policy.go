// Package admission decides whether a receiving platform accepts a
// departure. Policies are pure rule tables with no state or identity.
package admission

import (
	"slices"
	"strings"
	"time"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/marker"
)

// Well-known preset names.
const (
	NameOpenDoor      = "OPEN_DOOR"
	NameStrict        = "STRICT"
	NameEmergencyOnly = "EMERGENCY_ONLY"
)

// Rule is a custom predicate a valid marker must satisfy.
type Rule struct {
	Name string
	// Reason is reported when Check fails. Defaults to ReasonRuleNotSatisfied.
	Reason Reason
	Check  func(m *marker.ExitMarker) bool
}

// Policy is a named admission rule set.
type Policy struct {
	Name string
	// AllowedExitTypes lists admissible exit types. Empty admits every type.
	AllowedExitTypes []marker.ExitType
	// RequireJustification denies markers without a metadata justification.
	RequireJustification bool
	BlockedOrigins       []string
	RequiredModules      []string
	// MaxAge denies markers older than this at evaluation time. Zero
	// disables the check.
	MaxAge time.Duration
	Rules  []Rule
	// AdmitKeyCompromise admits valid keyCompromise departures before any
	// other rule runs.
	AdmitKeyCompromise bool
}

// OpenDoor admits every valid marker.
func OpenDoor() Policy {
	return Policy{Name: NameOpenDoor}
}

// Strict admits only voluntary departures.
func Strict() Policy {
	return Policy{
		Name:             NameStrict,
		AllowedExitTypes: []marker.ExitType{marker.ExitVoluntary},
	}
}

// EmergencyOnly admits emergency, forced and keyCompromise departures.
func EmergencyOnly() Policy {
	return Policy{
		Name:             NameEmergencyOnly,
		AllowedExitTypes: []marker.ExitType{marker.ExitEmergency, marker.ExitForced, marker.ExitKeyCompromise},
	}
}

// Presets returns the well-known policies.
func Presets() []Policy {
	return []Policy{OpenDoor(), Strict(), EmergencyOnly()}
}

// Preset resolves a well-known policy by name. Matching ignores case and
// surrounding whitespace.
func Preset(name string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case NameOpenDoor:
		return OpenDoor(), nil
	case NameStrict:
		return Strict(), nil
	case NameEmergencyOnly:
		return EmergencyOnly(), nil
	default:
		return Policy{}, dErrors.Newf(dErrors.CodeUnknownPolicy, "unknown admission policy %q", name)
	}
}

// Permits reports whether the exit type table allows t.
func (p Policy) Permits(t marker.ExitType) bool {
	return len(p.AllowedExitTypes) == 0 || slices.Contains(p.AllowedExitTypes, t)
}
