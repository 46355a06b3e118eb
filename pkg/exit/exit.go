// Package exit creates and verifies EXIT markers.
package exit

import (
	"strings"
	"time"

	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
	"passage/pkg/marker"
	"passage/pkg/proof"
)

// Option configures Create.
type Option func(*options)

type options struct {
	clock   func() time.Time
	reason  string
	modules []module
}

type module struct {
	name string
	bag  *marker.Bag
}

// WithClock overrides the creation clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithReason records a free-text departure reason in the metadata module.
func WithReason(reason string) Option {
	return func(o *options) {
		o.reason = reason
	}
}

// WithModule adds a named module alongside metadata.
func WithModule(name string, bag *marker.Bag) Option {
	return func(o *options) {
		o.modules = append(o.modules, module{name: name, bag: bag})
	}
}

// Metadata builds a metadata module from the usual free-text fields, skipping
// empty ones.
func Metadata(reason, justification string) *marker.Bag {
	b := marker.NewBag()
	if reason != "" {
		b.SetString(marker.KeyReason, reason)
	}
	if justification != "" {
		b.SetString(marker.KeyJustification, justification)
	}
	return b
}

// Create builds and signs an EXIT marker for signer leaving origin. metadata
// becomes the marker's metadata module and may be nil.
func Create(signer *identity.Identity, origin string, exitType marker.ExitType, metadata *marker.Bag, opts ...Option) (*marker.ExitMarker, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if signer == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "signing identity is required")
	}
	if strings.TrimSpace(origin) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "origin is required")
	}
	if !exitType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unrecognized exit type %q", exitType)
	}

	meta := metadata.Clone()
	if o.reason != "" {
		meta.SetString(marker.KeyReason, o.reason)
	}
	if exitType == marker.ExitEmergency && blank(meta.GetString(marker.KeyJustification)) {
		return nil, dErrors.New(dErrors.CodeValidation, "emergency exit requires a justification")
	}

	modules := marker.NewBag()
	if meta.Len() > 0 {
		modules.Set(marker.ModuleMetadata, marker.Nested(meta))
	}
	for _, mod := range o.modules {
		if mod.name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "module name is required")
		}
		modules.Set(mod.name, marker.Nested(mod.bag.Clone()))
	}

	m := &marker.ExitMarker{
		Context:   marker.ContextV1,
		ID:        domain.NewMarkerID(domain.MarkerKindExit).String(),
		Subject:   signer.DID(),
		Origin:    origin,
		ExitType:  exitType,
		Timestamp: o.clock().UTC().Truncate(marker.Precision),
		Status:    marker.StatusDeparted,
		Modules:   modules,
	}
	p, err := proof.Attach(m, signer)
	if err != nil {
		return nil, err
	}
	m.Proof = p
	return m, nil
}

// Verify checks m using only its own contents. The result lists every
// failure in a fixed order.
func Verify(m *marker.ExitMarker) marker.Result {
	if m == nil {
		return marker.NewResult([]marker.Code{marker.CodeParseFailure})
	}
	var codes []marker.Code
	if m.Context == "" {
		codes = append(codes, marker.CodeMissingContext)
	}
	codes = append(codes, marker.CheckID(m.ID, domain.MarkerKindExit)...)
	if m.Subject == "" {
		codes = append(codes, marker.CodeMissingSubject)
	}
	if blank(m.Origin) {
		codes = append(codes, marker.CodeMissingOrigin)
	}
	switch {
	case m.ExitType == "":
		codes = append(codes, marker.CodeMissingExitType)
	case !m.ExitType.Valid():
		codes = append(codes, marker.CodeUnrecognizedExitType)
	}
	if m.Timestamp.IsZero() {
		codes = append(codes, marker.CodeMissingTimestamp)
	}
	if m.Status != marker.StatusDeparted {
		codes = append(codes, marker.CodeInvalidStatus)
	}
	if m.ExitType == marker.ExitEmergency && blank(m.Justification()) {
		codes = append(codes, marker.CodeMissingJustification)
	}
	codes = append(codes, marker.CheckProof(m, m.Proof, m.Subject)...)
	return marker.NewResult(codes)
}

// VerifyJSON parses data and verifies the result. Parse failures come back
// as failed results.
func VerifyJSON(data []byte) marker.Result {
	p := marker.ParseExit(data)
	if !p.OK() {
		return p.Failure()
	}
	return Verify(p.Value)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
