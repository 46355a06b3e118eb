package marker

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"passage/pkg/proof"
)

// ParseError is a boundary failure carrying the code it maps to.
type ParseError struct {
	Code Code
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(code Code, format string, args ...any) *ParseError {
	return &ParseError{Code: code, Err: fmt.Errorf(format, args...)}
}

// Parsed is the typed outcome of reading a marker at the boundary: either a
// document or the reasons it could not be read.
type Parsed[T any] struct {
	Value  *T
	Errors []Code
	Err    error
}

// OK reports whether a document was read.
func (p Parsed[T]) OK() bool { return p.Value != nil }

// Failure returns the verification-shaped result for a failed parse.
func (p Parsed[T]) Failure() Result {
	return NewResult(p.Errors)
}

func parsed[T any](v *T, err error) Parsed[T] {
	if err != nil {
		code := CodeParseFailure
		var pe *ParseError
		if errors.As(err, &pe) {
			code = pe.Code
		}
		return Parsed[T]{Errors: []Code{code}, Err: err}
	}
	return Parsed[T]{Value: v}
}

// ParseExit reads an EXIT marker document. It never panics.
func ParseExit(data []byte) Parsed[ExitMarker] {
	return parsed(decodeExit(data))
}

// ParseArrival reads an ARRIVAL marker document. It never panics.
func ParseArrival(data []byte) Parsed[ArrivalMarker] {
	return parsed(decodeArrival(data))
}

type object map[string]json.RawMessage

// members decodes data as a JSON object whose member names are exactly the
// required ones plus any of the optional ones. Names are case-sensitive.
func members(data []byte, required, optional []string) (object, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, parseErrorf(CodeParseFailure, "decode document: %w", err)
	}
	if obj == nil {
		return nil, parseErrorf(CodeParseFailure, "document must be an object")
	}
	for k := range obj {
		if !slices.Contains(required, k) && !slices.Contains(optional, k) {
			return nil, parseErrorf(CodeParseFailure, "unknown member %q", k)
		}
	}
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			return nil, parseErrorf(CodeParseFailure, "missing member %q", k)
		}
	}
	return obj, nil
}

func (o object) text(key string) (string, error) {
	raw, ok := o[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", parseErrorf(CodeParseFailure, "member %q must be a string", key)
	}
	return s, nil
}

func (o object) timestamp(key string) (time.Time, error) {
	s, err := o.text(key)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, parseErrorf(CodeParseFailure, "member %q: %w", key, err)
	}
	if FormatTimestamp(t) != s {
		return time.Time{}, parseErrorf(CodeParseFailure, "member %q must be UTC with millisecond precision", key)
	}
	return t.UTC(), nil
}

func (o object) exitType(key string) (ExitType, error) {
	s, err := o.text(key)
	if err != nil || s == "" {
		return "", err
	}
	t := ExitType(s)
	if !t.Valid() {
		return "", parseErrorf(CodeUnrecognizedExitType, "unrecognized exit type %q", s)
	}
	return t, nil
}

// modules reads the module mapping; every module must itself be a mapping.
func (o object) modules(key string) (*Bag, error) {
	raw, ok := o[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	bag := NewBag()
	if err := bag.UnmarshalJSON(raw); err != nil {
		if errors.Is(err, ErrUnsupportedValue) {
			return nil, &ParseError{Code: CodeUnsupportedMetadataValue, Err: err}
		}
		return nil, &ParseError{Code: CodeParseFailure, Err: err}
	}
	for _, name := range bag.Keys() {
		if _, ok := bag.Bag(name); !ok {
			return nil, parseErrorf(CodeUnsupportedMetadataValue, "module %q must be an object", name)
		}
	}
	return bag, nil
}

func (o object) proof(key string) (proof.Proof, error) {
	raw, ok := o[key]
	if !ok || string(raw) == "null" {
		return proof.Proof{}, nil
	}
	obj, err := members(raw, []string{"type", "signature"}, []string{"verificationMethod"})
	if err != nil {
		return proof.Proof{}, err
	}
	var p proof.Proof
	if p.Type, err = obj.text("type"); err != nil {
		return proof.Proof{}, err
	}
	if p.VerificationMethod, err = obj.text("verificationMethod"); err != nil {
		return proof.Proof{}, err
	}
	if p.Signature, err = obj.text("signature"); err != nil {
		return proof.Proof{}, err
	}
	return p, nil
}
