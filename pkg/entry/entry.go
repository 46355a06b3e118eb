// Package entry creates ARRIVAL markers for verified departures and checks
// the continuity between an EXIT and the ARRIVAL that references it.
package entry

import (
	"fmt"
	"strings"
	"time"

	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
	"passage/pkg/proof"
)

// InvalidExitMarkerError is returned when asked to attest arrival for a
// departure that does not verify.
type InvalidExitMarkerError struct {
	Codes []marker.Code
}

func (e *InvalidExitMarkerError) Error() string {
	return fmt.Sprintf("invalid exit marker: %v", e.Codes)
}

func (e *InvalidExitMarkerError) Unwrap() error {
	return dErrors.New(dErrors.CodeInvalidExitMarker, "exit marker failed verification")
}

// Result is a freshly attested arrival together with the departure it
// follows.
type Result struct {
	Arrival    *marker.ArrivalMarker `json:"arrivalMarker"`
	Exit       *marker.ExitMarker    `json:"exitMarker"`
	Continuity ContinuityRecord      `json:"continuity"`
}

// Option configures CreateArrival.
type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock overrides the creation clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// CreateArrival verifies ex and, if it holds, signs an ARRIVAL at destination.
// When signer is not the departing subject it is recorded as the attester.
func CreateArrival(ex *marker.ExitMarker, destination string, signer *identity.Identity, opts ...Option) (*Result, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if res := exit.Verify(ex); !res.Valid {
		return nil, &InvalidExitMarkerError{Codes: res.Errors}
	}
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "signing identity is required")
	}
	if strings.TrimSpace(destination) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "destination is required")
	}

	ts := o.clock().UTC().Truncate(marker.Precision)
	if ts.Before(ex.Timestamp) {
		ts = ex.Timestamp
	}

	a := &marker.ArrivalMarker{
		Context:      marker.ContextV1,
		ID:           domain.NewMarkerID(domain.MarkerKindArrival).String(),
		Subject:      ex.Subject,
		Destination:  destination,
		Timestamp:    ts,
		ExitMarkerID: ex.ID,
		Status:       marker.StatusArrived,
	}
	if signer.DID() != ex.Subject {
		a.Attester = signer.DID()
	}
	p, err := proof.Attach(a, signer)
	if err != nil {
		return nil, err
	}
	a.Proof = p

	return &Result{
		Arrival:    a,
		Exit:       ex,
		Continuity: VerifyContinuity(ex, a),
	}, nil
}

// QuickEntry parses a departure document and attests arrival for it.
func QuickEntry(exitJSON []byte, destination string, signer *identity.Identity, opts ...Option) (*Result, error) {
	p := marker.ParseExit(exitJSON)
	if !p.OK() {
		return nil, &InvalidExitMarkerError{Codes: p.Errors}
	}
	return CreateArrival(p.Value, destination, signer, opts...)
}

// VerifyArrival checks a using only its own contents. The proof is checked
// against the attester, or the subject when there is none.
func VerifyArrival(a *marker.ArrivalMarker) marker.Result {
	if a == nil {
		return marker.NewResult([]marker.Code{marker.CodeParseFailure})
	}
	var codes []marker.Code
	if a.Context == "" {
		codes = append(codes, marker.CodeMissingContext)
	}
	codes = append(codes, marker.CheckID(a.ID, domain.MarkerKindArrival)...)
	if a.Subject == "" {
		codes = append(codes, marker.CodeMissingSubject)
	}
	if strings.TrimSpace(a.Destination) == "" {
		codes = append(codes, marker.CodeMissingDestination)
	}
	if a.Timestamp.IsZero() {
		codes = append(codes, marker.CodeMissingTimestamp)
	}
	switch ref := marker.CheckID(a.ExitMarkerID, domain.MarkerKindExit); {
	case a.ExitMarkerID == "":
		codes = append(codes, marker.CodeMissingExitReference)
	case len(ref) > 0:
		codes = append(codes, marker.CodeMalformedReference)
	}
	if a.Status != marker.StatusArrived {
		codes = append(codes, marker.CodeInvalidStatus)
	}
	codes = append(codes, marker.CheckProof(a, a.Proof, a.Signer())...)
	return marker.NewResult(codes)
}

// VerifyArrivalJSON parses data and verifies the result.
func VerifyArrivalJSON(data []byte) marker.Result {
	p := marker.ParseArrival(data)
	if !p.OK() {
		return p.Failure()
	}
	return VerifyArrival(p.Value)
}
