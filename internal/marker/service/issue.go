package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"passage/internal/marker/store"
	"passage/pkg/admission"
	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/marker"
	audit "passage/pkg/platform/audit"
)

// ExitRequest describes a departure to sign.
type ExitRequest struct {
	Origin        string
	ExitType      marker.ExitType
	Reason        string
	Justification string
	// Modules are extra named modules carried next to metadata.
	Modules map[string]*marker.Bag
}

// CreateExit signs, archives and records a departure for the service
// identity.
func (s *Service) CreateExit(ctx context.Context, req ExitRequest) (*marker.ExitMarker, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.CreateExit")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("create_exit", time.Since(start)) }()

	if req.ExitType == "" {
		req.ExitType = marker.ExitVoluntary
	}
	span.SetAttributes(
		attribute.String("marker.origin", req.Origin),
		attribute.String("marker.exit_type", string(req.ExitType)),
	)

	opts := []exit.Option{exit.WithClock(func() time.Time { return s.now(ctx) })}
	for name, bag := range req.Modules {
		opts = append(opts, exit.WithModule(name, bag))
	}
	m, err := exit.Create(s.signer, req.Origin, req.ExitType, exit.Metadata(req.Reason, req.Justification), opts...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("marker.id", m.ID))

	rec, err := store.ExitRecord(m)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode exit marker", "marker_id", m.ID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode exit marker")
	}
	if err := s.archive.SaveExit(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive exit marker", "marker_id", m.ID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive exit marker")
	}
	s.remember(ctx, rec)

	s.metrics.IncrementCreated(string(domain.MarkerKindExit), string(m.ExitType))
	s.emit(ctx, audit.Event{
		Subject:  m.Subject,
		MarkerID: m.ID,
		Action:   string(audit.EventExitMarkerCreated),
		Origin:   m.Origin,
		ExitType: string(m.ExitType),
	})
	s.logger.InfoContext(ctx, "exit marker created",
		"marker_id", m.ID,
		"subject", m.Subject,
		"origin", m.Origin,
		"exit_type", string(m.ExitType),
	)
	return m, nil
}

// ArrivalRequest asks the service to attest arrival for a departure.
type ArrivalRequest struct {
	ExitMarker  []byte
	Destination string
	// Policy, when set, must admit the departure before arrival is signed.
	Policy string
}

// CreateArrival verifies the departure, optionally applies an admission
// policy, then signs and archives the arrival with the service identity.
func (s *Service) CreateArrival(ctx context.Context, req ArrivalRequest) (*entry.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.CreateArrival")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("create_arrival", time.Since(start)) }()
	span.SetAttributes(attribute.String("marker.destination", req.Destination))

	parsed := marker.ParseExit(req.ExitMarker)
	if !parsed.OK() {
		s.rejected(ctx, "", "", parsed.Errors)
		span.SetStatus(codes.Error, "exit marker unreadable")
		return nil, &entry.InvalidExitMarkerError{Codes: parsed.Errors}
	}
	ex := parsed.Value

	if strings.TrimSpace(req.Policy) != "" {
		d, err := s.decide(ctx, ex, req.Policy)
		if err != nil {
			return nil, err
		}
		if d.Outcome == admission.OutcomeDenied {
			span.SetStatus(codes.Error, string(d.Reason))
			return nil, dErrors.Newf(dErrors.CodeForbidden, "admission denied: %s", d.Reason)
		}
	}

	res, err := entry.CreateArrival(ex, req.Destination, s.signer, entry.WithClock(func() time.Time { return s.now(ctx) }))
	if err != nil {
		var invalid *entry.InvalidExitMarkerError
		if errors.As(err, &invalid) {
			s.rejected(ctx, ex.Subject, ex.ID, invalid.Codes)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.metrics.RecordVerification(string(domain.MarkerKindExit), true, nil)

	a := res.Arrival
	span.SetAttributes(attribute.String("marker.id", a.ID), attribute.String("marker.exit_id", a.ExitMarkerID))
	rec, err := store.ArrivalRecord(a)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode arrival marker", "marker_id", a.ID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode arrival marker")
	}
	if err := s.archive.SaveArrival(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive arrival marker", "marker_id", a.ID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive arrival marker")
	}
	s.remember(ctx, rec)

	s.metrics.IncrementCreated(string(domain.MarkerKindArrival), string(ex.ExitType))
	s.emit(ctx, audit.Event{
		Subject:     a.Subject,
		MarkerID:    a.ID,
		Action:      string(audit.EventArrivalMarkerCreated),
		Origin:      ex.Origin,
		Destination: a.Destination,
		ExitType:    string(ex.ExitType),
		Policy:      req.Policy,
		ActorID:     a.Attester,
	})
	s.logger.InfoContext(ctx, "arrival marker created",
		"marker_id", a.ID,
		"exit_marker_id", a.ExitMarkerID,
		"subject", a.Subject,
		"destination", a.Destination,
	)
	return res, nil
}

// rejected records a departure that failed verification.
func (s *Service) rejected(ctx context.Context, subject, markerID string, failures []marker.Code) {
	reasons := make([]string, len(failures))
	for i, c := range failures {
		reasons[i] = string(c)
	}
	s.metrics.RecordVerification(string(domain.MarkerKindExit), false, reasons)
	s.emit(ctx, audit.Event{
		Subject:  subject,
		MarkerID: markerID,
		Action:   string(audit.EventVerificationFailed),
		Reason:   strings.Join(reasons, ","),
	})
	s.logger.WarnContext(ctx, "exit marker rejected",
		"marker_id", markerID,
		"subject", subject,
		"codes", reasons,
	)
}
