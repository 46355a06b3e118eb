package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"passage/internal/envelope"
	"passage/pkg/platform/audit"
)

// Seal wraps a marker document in an envelope signed by the service
// identity. The document must verify.
func (s *Service) Seal(ctx context.Context, document []byte) (string, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.Seal")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("seal", time.Since(start)) }()

	token, err := envelope.Seal(document, s.signer)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	env, err := envelope.Open(token)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("marker.id", env.ID()), attribute.String("marker.kind", string(env.Kind)))

	s.emit(ctx, audit.Event{
		Subject:  subjectOf(env),
		MarkerID: env.ID(),
		Action:   string(audit.EventEnvelopeSealed),
		ActorID:  s.signer.DID(),
	})
	return token, nil
}

// Open verifies an envelope and the marker inside it. Any DID may have
// sealed it.
func (s *Service) Open(ctx context.Context, token string) (*envelope.Envelope, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "marker.Open")
	defer span.End()
	defer func() { s.metrics.ObserveOperation("open", time.Since(start)) }()

	env, err := envelope.Open(token)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.InfoContext(ctx, "envelope rejected", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("marker.id", env.ID()), attribute.String("envelope.issuer", env.Issuer))
	return env, nil
}

func subjectOf(env *envelope.Envelope) string {
	if env.Arrival != nil {
		return env.Arrival.Subject
	}
	if env.Exit != nil {
		return env.Exit.Subject
	}
	return ""
}
