package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "passage/pkg/domain-errors"
)

// MarkerKind distinguishes departure and arrival marker identifiers.
type MarkerKind string

const (
	MarkerKindExit    MarkerKind = "exit"
	MarkerKindArrival MarkerKind = "arrival"
)

const maxMarkerIDLength = 64

// MarkerID identifies a marker document: urn:<kind>:<uuid>.
type MarkerID struct {
	Kind MarkerKind
	UUID uuid.UUID
}

// NewMarkerID returns a fresh random identifier of the given kind.
func NewMarkerID(kind MarkerKind) MarkerID {
	return MarkerID{Kind: kind, UUID: uuid.New()}
}

func (id MarkerID) String() string {
	return "urn:" + string(id.Kind) + ":" + id.UUID.String()
}

// IsNil reports whether the identifier carries no UUID.
func (id MarkerID) IsNil() bool {
	return id.UUID == uuid.Nil
}

// ParseMarkerID validates an identifier received at a trust boundary.
func ParseMarkerID(s string) (MarkerID, error) {
	if s == "" {
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id is required")
	}
	if len(s) > maxMarkerIDLength {
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id is too long")
	}
	rest, ok := strings.CutPrefix(s, "urn:")
	if !ok {
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id must be a urn")
	}
	kind, raw, ok := strings.Cut(rest, ":")
	if !ok {
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id is missing its kind")
	}
	switch MarkerKind(kind) {
	case MarkerKindExit, MarkerKindArrival:
	default:
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id has an unknown kind")
	}
	if len(raw) != 36 {
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id must end in a canonical uuid")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return MarkerID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "marker id must end in a canonical uuid")
	}
	if parsed == uuid.Nil {
		return MarkerID{}, dErrors.New(dErrors.CodeInvalidInput, "marker id must not be nil")
	}
	return MarkerID{Kind: MarkerKind(kind), UUID: parsed}, nil
}
