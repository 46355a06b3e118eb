package marker

import (
	"passage/pkg/domain"
	"passage/pkg/proof"
)

// CheckID validates a marker identifier of the expected kind.
func CheckID(id string, kind domain.MarkerKind) []Code {
	if id == "" {
		return []Code{CodeMissingID}
	}
	parsed, err := domain.ParseMarkerID(id)
	if err != nil || parsed.Kind != kind {
		return []Code{CodeMalformedID}
	}
	return nil
}

// CheckProof verifies p over doc against controller's key. With no
// controller only proof presence can be checked.
func CheckProof(doc proof.Document, p proof.Proof, controller string) []Code {
	if controller == "" {
		if p.IsZero() {
			return []Code{CodeMissingProof}
		}
		return nil
	}
	return FromProof(proof.Check(doc, p, controller))
}
