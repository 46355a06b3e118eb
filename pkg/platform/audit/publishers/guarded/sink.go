// Package guarded wraps a broker sink with a circuit breaker so a broker
// outage degrades to a fallback sink instead of failing every emit.
package guarded

import (
	"context"
	"log/slog"

	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/circuit"
)

type Sink struct {
	primary  audit.Sink
	fallback audit.Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// New guards primary with breaker. fallback may be nil, in which case events
// are dropped while the circuit is open.
func New(primary, fallback audit.Sink, breaker *circuit.Breaker, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

// Append tries the primary first. Failures surface until the circuit opens;
// after that they are diverted to the fallback.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	err := s.primary.Append(ctx, event)
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "audit sink recovered", "breaker", s.breaker.Name())
		}
		return nil
	}

	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "audit sink circuit opened", "breaker", s.breaker.Name(), "error", err)
	}
	if !useFallback {
		return err
	}
	if s.fallback == nil {
		return nil
	}
	return s.fallback.Append(ctx, event)
}
