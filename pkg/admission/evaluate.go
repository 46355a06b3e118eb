package admission

import (
	"slices"
	"strings"
	"time"

	"passage/pkg/exit"
	"passage/pkg/marker"
)

// Outcome separates a broken marker from a genuine but unwelcome one.
type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeDenied   Outcome = "denied"
	OutcomeInvalid  Outcome = "invalid"
)

// Reason is drawn from a fixed vocabulary.
type Reason string

const (
	ReasonAdmitted              Reason = "admitted"
	ReasonMarkerInvalid         Reason = "marker invalid"
	ReasonTypeNotPermitted      Reason = "type not permitted under policy"
	ReasonJustificationRequired Reason = "justification required under policy"
	ReasonOriginBlocked         Reason = "origin blocked under policy"
	ReasonModuleMissing         Reason = "required module missing"
	ReasonMarkerExpired         Reason = "marker older than policy allows"
	ReasonRuleNotSatisfied      Reason = "rule not satisfied"
)

// Decision is the result of evaluating a departure against a policy.
type Decision struct {
	Admitted bool    `json:"admitted"`
	Outcome  Outcome `json:"outcome"`
	Reason   Reason  `json:"reason"`
	Policy   string  `json:"policy"`
	// Rule names the custom rule that denied the marker, if any.
	Rule string `json:"rule,omitempty"`
	// Errors carries the verification codes when Outcome is invalid.
	Errors      []marker.Code `json:"errors"`
	EvaluatedAt time.Time     `json:"evaluatedAt"`
}

// EvaluateAt applies p to m as of now. The result depends only on its
// arguments: now is used for MaxAge and is stamped as EvaluatedAt.
// Rule priority (fail-fast):
//  1. Marker verification - unverifiable markers are never admitted
//  2. keyCompromise opt-in
//  3. Exit type table
//  4. Auxiliary conditions: justification, origin, modules, age
//  5. Custom rules in declaration order
func EvaluateAt(m *marker.ExitMarker, p Policy, now time.Time) Decision {
	d := Decision{Policy: p.Name, Errors: []marker.Code{}, EvaluatedAt: now.UTC()}

	if res := exit.Verify(m); !res.Valid {
		d.Outcome, d.Reason, d.Errors = OutcomeInvalid, ReasonMarkerInvalid, res.Errors
		return d
	}

	if m.ExitType == marker.ExitKeyCompromise && p.AdmitKeyCompromise {
		return admit(d)
	}

	if !p.Permits(m.ExitType) {
		return deny(d, ReasonTypeNotPermitted, "")
	}
	if p.RequireJustification && strings.TrimSpace(m.Justification()) == "" {
		return deny(d, ReasonJustificationRequired, "")
	}
	if slices.Contains(p.BlockedOrigins, m.Origin) {
		return deny(d, ReasonOriginBlocked, "")
	}
	for _, name := range p.RequiredModules {
		if m.Module(name) == nil {
			return deny(d, ReasonModuleMissing, "")
		}
	}
	if p.MaxAge > 0 && now.Sub(m.Timestamp) > p.MaxAge {
		return deny(d, ReasonMarkerExpired, "")
	}

	for _, rule := range p.Rules {
		if rule.Check == nil || rule.Check(m) {
			continue
		}
		reason := rule.Reason
		if reason == "" {
			reason = ReasonRuleNotSatisfied
		}
		return deny(d, reason, rule.Name)
	}

	return admit(d)
}

func admit(d Decision) Decision {
	d.Admitted, d.Outcome, d.Reason = true, OutcomeAdmitted, ReasonAdmitted
	return d
}

func deny(d Decision, reason Reason, rule string) Decision {
	d.Outcome, d.Reason, d.Rule = OutcomeDenied, reason, rule
	return d
}
