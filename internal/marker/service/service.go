// Package service orchestrates marker issuance and verification. It wires
// the protocol packages to archival, the recent-marker log, audit, metrics
// and tracing; the protocol itself lives in pkg/.
package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"passage/internal/marker/metrics"
	"passage/internal/marker/recent"
	"passage/internal/marker/store"
	"passage/pkg/admission"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
	"passage/pkg/marker"
	audit "passage/pkg/platform/audit"
	"passage/pkg/requestcontext"
)

// Archive persists issued markers.
type Archive interface {
	SaveExit(ctx context.Context, m *marker.ExitMarker) error
	SaveArrival(ctx context.Context, a *marker.ArrivalMarker) error
	FindByID(ctx context.Context, id string) (*store.Record, error)
	ListBySubject(ctx context.Context, subject string) ([]store.Record, error)
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const tracerName = "passage/internal/marker/service"

// Service signs markers with one identity and verifies markers from anyone.
type Service struct {
	signer   *identity.Identity
	archive  Archive
	recent   recent.Log[store.Record]
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    func() time.Time
	tracer   trace.Tracer
	policyMu sync.RWMutex
	policies map[string]admission.Policy
	fallback string
}

// Option configures the Service.
type Option func(*Service)

func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

func WithRecentLog(l recent.Log[store.Record]) Option {
	return func(s *Service) { s.recent = l }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithPolicy registers a named admission policy alongside the presets.
func WithPolicy(p admission.Policy) Option {
	return func(s *Service) {
		s.policies[policyKey(p.Name)] = p
	}
}

// WithDefaultPolicy names the policy used when a request names none.
func WithDefaultPolicy(name string) Option {
	return func(s *Service) { s.fallback = name }
}

// New builds a Service that signs with signer.
func New(signer *identity.Identity, opts ...Option) (*Service, error) {
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "signing identity is required")
	}
	s := &Service{
		signer:   signer,
		archive:  store.NewInMemoryStore(),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		policies: make(map[string]admission.Policy),
		fallback: admission.NameOpenDoor,
	}
	for _, p := range admission.Presets() {
		s.policies[policyKey(p.Name)] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recent == nil {
		s.recent = recent.NewMemory[store.Record](recent.DefaultCapacity)
	}
	if _, err := s.policy(s.fallback); err != nil {
		return nil, err
	}
	return s, nil
}

// now is the service clock, or the request-scoped time when none is set.
func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

// DID is the identifier markers issued by this service are signed with.
func (s *Service) DID() string {
	return s.signer.DID()
}

// Policies lists the registered policy names in sorted order.
func (s *Service) Policies() []string {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	names := make([]string, 0, len(s.policies))
	for _, p := range s.policies {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names
}

func (s *Service) policy(name string) (admission.Policy, error) {
	if strings.TrimSpace(name) == "" {
		name = s.fallback
	}
	s.policyMu.RLock()
	p, ok := s.policies[policyKey(name)]
	s.policyMu.RUnlock()
	if !ok {
		return admission.Policy{}, dErrors.Newf(dErrors.CodeUnknownPolicy, "unknown admission policy %q", name)
	}
	return p, nil
}

func policyKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func requestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
