// Package marker defines the EXIT and ARRIVAL documents, their wire form and
// the verification code vocabulary shared by every engine that checks them.
package marker

import (
	"slices"
	"time"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/proof"
)

// ContextV1 is the JSON-LD context every marker carries.
const ContextV1 = "https://w3id.org/passage/v1"

const (
	StatusDeparted = "departed"
	StatusArrived  = "arrived"
)

// ModuleMetadata is the module holding free-text departure details.
const ModuleMetadata = "metadata"

const (
	KeyReason        = "reason"
	KeyJustification = "justification"
)

// TimestampLayout is the wire form of marker timestamps: RFC 3339, UTC,
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Precision is the resolution of marker timestamps.
const Precision = time.Millisecond

// ExitType classifies a departure.
type ExitType string

const (
	ExitVoluntary     ExitType = "voluntary"
	ExitForced        ExitType = "forced"
	ExitEmergency     ExitType = "emergency"
	ExitKeyCompromise ExitType = "keyCompromise"
)

var exitTypes = []ExitType{ExitVoluntary, ExitForced, ExitEmergency, ExitKeyCompromise}

// ExitTypes lists the recognised exit types in declaration order.
func ExitTypes() []ExitType {
	return slices.Clone(exitTypes)
}

// Valid reports whether t is one of the recognised exit types.
func (t ExitType) Valid() bool {
	return slices.Contains(exitTypes, t)
}

func (t ExitType) String() string { return string(t) }

// ParseExitType resolves the wire name of an exit type.
func ParseExitType(s string) (ExitType, error) {
	t := ExitType(s)
	if !t.Valid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unrecognized exit type %q", s)
	}
	return t, nil
}

// Code is a stable verification failure identifier.
type Code string

const (
	CodeParseFailure             Code = "parse_failure"
	CodeUnrecognizedExitType     Code = "unrecognized_exit_type"
	CodeUnsupportedMetadataValue Code = "unsupported_metadata_value"

	CodeMissingContext       Code = "missing_context"
	CodeMissingID            Code = "missing_id"
	CodeMalformedID          Code = "malformed_id"
	CodeMissingSubject       Code = "missing_subject"
	CodeMissingOrigin        Code = "missing_origin"
	CodeMissingDestination   Code = "missing_destination"
	CodeMissingTimestamp     Code = "missing_timestamp"
	CodeMissingExitType      Code = "missing_exit_type"
	CodeInvalidStatus        Code = "invalid_status"
	CodeMissingJustification Code = "missing_justification"
	CodeMissingExitReference Code = "missing_exit_reference"
	CodeMalformedReference   Code = "malformed_exit_reference"

	CodeMissingProof         = Code(proof.CodeMissingProof)
	CodeUnsupportedProofType = Code(proof.CodeUnsupportedProofType)
	CodeInvalidSubject       = Code(proof.CodeInvalidSubject)
	CodeKeyMismatch          = Code(proof.CodeKeyMismatch)
	CodeInvalidSignature     = Code(proof.CodeInvalidSignature)
	CodeEncodingFailure      = Code(proof.CodeEncodingFailure)
)

// FromProof converts proof check codes into marker codes.
func FromProof(codes []proof.Code) []Code {
	out := make([]Code, 0, len(codes))
	for _, c := range codes {
		out = append(out, Code(c))
	}
	return out
}

// Result is the outcome of verifying a single marker. A failed check is a
// normal result, not an error.
type Result struct {
	Valid  bool   `json:"valid"`
	Errors []Code `json:"errors"`
}

// NewResult builds a result from the failure codes found, in check order.
func NewResult(codes []Code) Result {
	if codes == nil {
		codes = []Code{}
	}
	return Result{Valid: len(codes) == 0, Errors: codes}
}

// Has reports whether the result carries code.
func (r Result) Has(code Code) bool {
	return slices.Contains(r.Errors, code)
}

// Strings returns the codes as plain strings.
func (r Result) Strings() []string {
	out := make([]string, len(r.Errors))
	for i, c := range r.Errors {
		out[i] = string(c)
	}
	return out
}

// FormatTimestamp renders t in the marker wire form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Now returns the current instant truncated to marker precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}
