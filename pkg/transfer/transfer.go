// Package transfer re-validates a complete EXIT to ARRIVAL chain from the two
// documents alone.
package transfer

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/marker"
)

// ParseFailure is the single error reported when either document cannot be
// read.
const ParseFailure = "parse failure"

// Stage prefixes on aggregated errors.
const (
	StageExit       = "exit"
	StageArrival    = "arrival"
	StageContinuity = "continuity"
)

// Record is the composite verification result of a transfer.
type Record struct {
	Verified bool `json:"verified"`
	// TransferTime is the arrival timestamp when the transfer verified.
	TransferTime *time.Time              `json:"transferTime"`
	Errors       []string                `json:"errors"`
	Exit         *marker.Result          `json:"exit,omitempty"`
	Arrival      *marker.Result          `json:"arrival,omitempty"`
	Continuity   *entry.ContinuityRecord `json:"continuity"`
}

// Verify checks the departure, the arrival and their continuity.
func Verify(ex *marker.ExitMarker, arrival *marker.ArrivalMarker) Record {
	exitRes := exit.Verify(ex)
	arrivalRes := entry.VerifyArrival(arrival)
	continuity := entry.VerifyContinuity(ex, arrival)

	errs := []string{}
	for _, c := range exitRes.Errors {
		errs = append(errs, tag(StageExit, string(c)))
	}
	for _, c := range arrivalRes.Errors {
		errs = append(errs, tag(StageArrival, string(c)))
	}
	for _, r := range continuity.Reasons {
		errs = append(errs, tag(StageContinuity, string(r)))
	}

	rec := Record{
		Verified:   exitRes.Valid && arrivalRes.Valid && continuity.Valid,
		Errors:     errs,
		Exit:       &exitRes,
		Arrival:    &arrivalRes,
		Continuity: &continuity,
	}
	if rec.Verified {
		ts := arrival.Timestamp
		rec.TransferTime = &ts
	}
	return rec
}

// VerifyJSON parses both documents and verifies them. A document that cannot
// be parsed yields a failed record with a single parse failure error.
func VerifyJSON(exitJSON, arrivalJSON []byte) Record {
	ex := marker.ParseExit(exitJSON)
	arrival := marker.ParseArrival(arrivalJSON)
	if !ex.OK() || !arrival.OK() {
		return Failed()
	}
	return Verify(ex.Value, arrival.Value)
}

// Failed is the record for unreadable input.
func Failed() Record {
	return Record{Errors: []string{ParseFailure}}
}

// Pair is one transfer to verify.
type Pair struct {
	Exit    *marker.ExitMarker
	Arrival *marker.ArrivalMarker
}

// VerifyBatch verifies pairs concurrently. Records keep input order. Only
// context cancellation produces an error.
func VerifyBatch(ctx context.Context, pairs []Pair) ([]Record, error) {
	records := make([]Record, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, p := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i] = Verify(p.Exit, p.Arrival)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func tag(stage, msg string) string {
	return stage + ":" + msg
}
