package entry

import (
	"slices"

	"passage/pkg/exit"
	"passage/pkg/marker"
)

// Reason names a violated continuity invariant.
type Reason string

const (
	ReasonSubjectMismatch      Reason = "subject_mismatch"
	ReasonDanglingReference    Reason = "dangling_reference"
	ReasonTemporalInversion    Reason = "temporal_inversion"
	ReasonExitMarkerInvalid    Reason = "exit_marker_invalid"
	ReasonArrivalMarkerInvalid Reason = "arrival_marker_invalid"
)

// ContinuityRecord says whether an ARRIVAL correctly succeeds an EXIT.
type ContinuityRecord struct {
	Valid   bool     `json:"valid"`
	Reasons []Reason `json:"reasons"`
}

// Has reports whether r lists reason.
func (r ContinuityRecord) Has(reason Reason) bool {
	return slices.Contains(r.Reasons, reason)
}

// VerifyContinuity checks that arrival follows ex: same subject, matching
// reference, non-decreasing timestamps, and both markers verifying on their
// own. Equal timestamps are valid.
func VerifyContinuity(ex *marker.ExitMarker, arrival *marker.ArrivalMarker) ContinuityRecord {
	reasons := []Reason{}
	if ex != nil && arrival != nil {
		if ex.Subject != arrival.Subject {
			reasons = append(reasons, ReasonSubjectMismatch)
		}
		if ex.ID != arrival.ExitMarkerID {
			reasons = append(reasons, ReasonDanglingReference)
		}
		if arrival.Timestamp.Before(ex.Timestamp) {
			reasons = append(reasons, ReasonTemporalInversion)
		}
	}
	if !exit.Verify(ex).Valid {
		reasons = append(reasons, ReasonExitMarkerInvalid)
	}
	if !VerifyArrival(arrival).Valid {
		reasons = append(reasons, ReasonArrivalMarkerInvalid)
	}
	return ContinuityRecord{Valid: len(reasons) == 0, Reasons: reasons}
}
