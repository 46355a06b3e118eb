package service

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"passage/pkg/admission"
	"passage/pkg/domain"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/marker"
	audit "passage/pkg/platform/audit"
	"passage/pkg/transfer"
)

// Verification is the outcome of verifying a single marker of either kind.
type Verification struct {
	Kind   domain.MarkerKind `json:"kind"`
	Valid  bool              `json:"valid"`
	Errors []marker.Code     `json:"errors"`
}

// Verify checks a serialized marker. The kind is taken from its id; anything
// that is not recognisably an arrival is verified as a departure.
func (s *Service) Verify(ctx context.Context, data []byte) Verification {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.Verify")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("verify", time.Since(start)) }()

	kind := sniffKind(data)
	var res marker.Result
	if kind == domain.MarkerKindArrival {
		res = entry.VerifyArrivalJSON(data)
	} else {
		res = exit.VerifyJSON(data)
	}
	span.SetAttributes(attribute.String("marker.kind", string(kind)), attribute.Bool("marker.valid", res.Valid))
	s.metrics.RecordVerification(string(kind), res.Valid, res.Strings())
	if !res.Valid {
		s.logger.InfoContext(ctx, "marker failed verification", "kind", string(kind), "codes", res.Strings())
	}
	return Verification{Kind: kind, Valid: res.Valid, Errors: res.Errors}
}

func sniffKind(data []byte) domain.MarkerKind {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return domain.MarkerKindExit
	}
	if id, err := domain.ParseMarkerID(probe.ID); err == nil {
		return id.Kind
	}
	return domain.MarkerKindExit
}

// EvaluateAdmission applies the named policy to a serialized departure. An
// unknown policy is an error; an unreadable or invalid marker is an invalid
// decision.
func (s *Service) EvaluateAdmission(ctx context.Context, exitJSON []byte, policy string) (admission.Decision, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.EvaluateAdmission")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("evaluate_admission", time.Since(start)) }()

	parsed := marker.ParseExit(exitJSON)
	if !parsed.OK() {
		p, err := s.policy(policy)
		if err != nil {
			return admission.Decision{}, err
		}
		d := admission.Decision{
			Outcome:     admission.OutcomeInvalid,
			Reason:      admission.ReasonMarkerInvalid,
			Policy:      p.Name,
			Errors:      parsed.Errors,
			EvaluatedAt: s.now(ctx).UTC(),
		}
		s.recordDecision(ctx, nil, d)
		return d, nil
	}
	return s.decide(ctx, parsed.Value, policy)
}

func (s *Service) decide(ctx context.Context, m *marker.ExitMarker, policy string) (admission.Decision, error) {
	p, err := s.policy(policy)
	if err != nil {
		return admission.Decision{}, err
	}
	d := admission.EvaluateAt(m, p, s.now(ctx))
	s.recordDecision(ctx, m, d)
	return d, nil
}

func (s *Service) recordDecision(ctx context.Context, m *marker.ExitMarker, d admission.Decision) {
	s.metrics.IncrementAdmission(d.Policy, string(d.Outcome))
	event := audit.Event{
		Action:   string(audit.EventAdmissionEvaluated),
		Policy:   d.Policy,
		Decision: string(d.Outcome),
		Reason:   string(d.Reason),
	}
	if m != nil {
		event.Subject, event.MarkerID, event.Origin, event.ExitType = m.Subject, m.ID, m.Origin, string(m.ExitType)
	}
	s.emit(ctx, event)
	s.logger.InfoContext(ctx, "admission evaluated",
		"marker_id", event.MarkerID,
		"policy", d.Policy,
		"outcome", string(d.Outcome),
		"reason", string(d.Reason),
	)
}

// VerifyTransfer re-validates an EXIT and ARRIVAL pair.
func (s *Service) VerifyTransfer(ctx context.Context, exitJSON, arrivalJSON []byte) transfer.Record {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.VerifyTransfer")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("verify_transfer", time.Since(start)) }()

	ex := marker.ParseExit(exitJSON)
	arrival := marker.ParseArrival(arrivalJSON)
	var rec transfer.Record
	if ex.OK() && arrival.OK() {
		rec = transfer.Verify(ex.Value, arrival.Value)
	} else {
		rec = transfer.Failed()
	}
	span.SetAttributes(attribute.Bool("transfer.verified", rec.Verified))
	s.recordTransfer(ctx, ex.Value, arrival.Value, rec)
	return rec
}

// TransferDocuments is one serialized pair for batch verification.
type TransferDocuments struct {
	Exit    json.RawMessage `json:"exitMarker"`
	Arrival json.RawMessage `json:"arrivalMarker"`
}

// VerifyTransfers verifies many pairs concurrently. Records keep input
// order; unreadable pairs get a parse failure record.
func (s *Service) VerifyTransfers(ctx context.Context, docs []TransferDocuments) ([]transfer.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.VerifyTransfers")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("verify_transfers", time.Since(start)) }()
	span.SetAttributes(attribute.Int("transfer.count", len(docs)))

	records := make([]transfer.Record, len(docs))
	pairs := make([]transfer.Pair, 0, len(docs))
	index := make([]int, 0, len(docs))
	for i, d := range docs {
		ex := marker.ParseExit(d.Exit)
		arrival := marker.ParseArrival(d.Arrival)
		if !ex.OK() || !arrival.OK() {
			records[i] = transfer.Failed()
			continue
		}
		pairs = append(pairs, transfer.Pair{Exit: ex.Value, Arrival: arrival.Value})
		index = append(index, i)
	}

	verified, err := transfer.VerifyBatch(ctx, pairs)
	if err != nil {
		return nil, err
	}
	for j, rec := range verified {
		records[index[j]] = rec
		s.recordTransfer(ctx, pairs[j].Exit, pairs[j].Arrival, rec)
	}
	return records, nil
}

func (s *Service) recordTransfer(ctx context.Context, ex *marker.ExitMarker, arrival *marker.ArrivalMarker, rec transfer.Record) {
	s.metrics.RecordVerification("transfer", rec.Verified, rec.Errors)
	event := audit.Event{
		Action:   string(audit.EventTransferVerified),
		Decision: "unverified",
	}
	if rec.Verified {
		event.Decision = "verified"
	}
	if ex != nil {
		event.Subject, event.MarkerID, event.Origin = ex.Subject, ex.ID, ex.Origin
	}
	if arrival != nil {
		event.Destination = arrival.Destination
	}
	if len(rec.Errors) > 0 {
		event.Reason = rec.Errors[0]
	}
	s.emit(ctx, event)
}
