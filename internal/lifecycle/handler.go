package lifecycle

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"passage/internal/marker/recent"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
)

// DefaultOrigin names the platform being left when none is configured.
const DefaultOrigin = "agent"

// Handler records a signed departure each time a job completes. When an
// arrival destination is configured it also attests arrival there.
type Handler struct {
	signer             *identity.Identity
	arrivalSigner      *identity.Identity
	origin             string
	exitType           marker.ExitType
	errorExitType      marker.ExitType
	arrivalDestination string
	capacity           int
	clock              func() time.Time
	logger             *slog.Logger

	markers  recent.Log[*marker.ExitMarker]
	arrivals recent.Log[*marker.ArrivalMarker]

	onMarker  []func(*marker.ExitMarker)
	onArrival []func(*marker.ArrivalMarker)
}

// Option configures a Handler.
type Option func(*Handler)

func WithOrigin(origin string) Option {
	return func(h *Handler) {
		if origin != "" {
			h.origin = origin
		}
	}
}

func WithExitType(t marker.ExitType) Option {
	return func(h *Handler) { h.exitType = t }
}

// WithErrorExitType enables markers on EventError with the given type. The
// error text becomes the reason and, for emergency exits, the justification.
func WithErrorExitType(t marker.ExitType) Option {
	return func(h *Handler) { h.errorExitType = t }
}

func WithArrivalDestination(destination string) Option {
	return func(h *Handler) { h.arrivalDestination = destination }
}

// WithArrivalSigner attests arrivals with a destination identity instead of
// the departing one.
func WithArrivalSigner(signer *identity.Identity) Option {
	return func(h *Handler) { h.arrivalSigner = signer }
}

// WithCapacity bounds the in-memory marker and arrival logs.
func WithCapacity(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithLogs replaces the in-memory logs, e.g. with Redis-backed ones.
func WithLogs(markers recent.Log[*marker.ExitMarker], arrivals recent.Log[*marker.ArrivalMarker]) Option {
	return func(h *Handler) {
		h.markers = markers
		h.arrivals = arrivals
	}
}

func WithOnMarker(fn func(*marker.ExitMarker)) Option {
	return func(h *Handler) {
		if fn != nil {
			h.onMarker = append(h.onMarker, fn)
		}
	}
}

func WithOnArrival(fn func(*marker.ArrivalMarker)) Option {
	return func(h *Handler) {
		if fn != nil {
			h.onArrival = append(h.onArrival, fn)
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler builds a handler that signs with signer.
func NewHandler(signer *identity.Identity, opts ...Option) (*Handler, error) {
	if signer == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "signing identity is required")
	}
	h := &Handler{
		signer:   signer,
		origin:   DefaultOrigin,
		exitType: marker.ExitVoluntary,
		capacity: recent.DefaultCapacity,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if !h.exitType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unrecognized exit type %q", h.exitType)
	}
	if h.errorExitType != "" && !h.errorExitType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unrecognized error exit type %q", h.errorExitType)
	}
	if h.markers == nil {
		h.markers = recent.NewMemory[*marker.ExitMarker](h.capacity)
	}
	if h.arrivals == nil {
		h.arrivals = recent.NewMemory[*marker.ArrivalMarker](h.capacity)
	}
	if h.arrivalSigner == nil {
		h.arrivalSigner = signer
	}
	return h, nil
}

// Attach registers the handler's listeners on d.
func (h *Handler) Attach(d *Dispatcher) {
	d.Register(EventComplete, func(ctx context.Context, _ Event) error {
		_, err := h.HandleComplete(ctx)
		return err
	})
	d.Register(EventError, func(ctx context.Context, ev Event) error {
		_, err := h.HandleError(ctx, ev.Err)
		return err
	})
}

// HandleComplete records a departure and, when configured, the matching
// arrival.
func (h *Handler) HandleComplete(ctx context.Context) (*marker.ExitMarker, error) {
	m, err := exit.Create(h.signer, h.origin, h.exitType, nil, exit.WithClock(h.clock))
	if err != nil {
		return nil, err
	}
	if err := h.record(ctx, m); err != nil {
		return nil, err
	}
	if h.arrivalDestination != "" {
		if _, err := h.arrive(ctx, m, h.arrivalDestination); err != nil {
			return m, err
		}
	}
	return m, nil
}

// HandleError records a departure for a failed job. It is a no-op unless an
// error exit type is configured.
func (h *Handler) HandleError(ctx context.Context, cause error) (*marker.ExitMarker, error) {
	if h.errorExitType == "" {
		return nil, nil
	}
	reason := "job failed"
	if cause != nil {
		reason = cause.Error()
	}
	var meta *marker.Bag
	if h.errorExitType == marker.ExitEmergency {
		meta = exit.Metadata(reason, reason)
	} else {
		meta = exit.Metadata(reason, "")
	}
	m, err := exit.Create(h.signer, h.origin, h.errorExitType, meta, exit.WithClock(h.clock))
	if err != nil {
		return nil, err
	}
	if err := h.record(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordArrival attests arrival for a serialized departure. destination
// falls back to the configured arrival destination, then to the origin.
func (h *Handler) RecordArrival(ctx context.Context, exitJSON []byte, destination string) (*entry.Result, error) {
	if destination == "" {
		destination = h.arrivalDestination
	}
	if destination == "" {
		destination = h.origin
	}
	res, err := entry.QuickEntry(exitJSON, destination, h.arrivalSigner, entry.WithClock(h.clock))
	if err != nil {
		return nil, err
	}
	if err := h.appendArrival(ctx, res.Arrival); err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handler) arrive(ctx context.Context, m *marker.ExitMarker, destination string) (*entry.Result, error) {
	res, err := entry.CreateArrival(m, destination, h.arrivalSigner, entry.WithClock(h.clock))
	if err != nil {
		return nil, err
	}
	if err := h.appendArrival(ctx, res.Arrival); err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handler) record(ctx context.Context, m *marker.ExitMarker) error {
	if err := h.markers.Append(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log exit marker")
	}
	h.logger.InfoContext(ctx, "exit marker recorded",
		"marker_id", m.ID,
		"subject", m.Subject,
		"exit_type", string(m.ExitType),
	)
	for _, fn := range h.onMarker {
		h.notify(ctx, m.ID, func() { fn(m) })
	}
	return nil
}

func (h *Handler) appendArrival(ctx context.Context, a *marker.ArrivalMarker) error {
	if err := h.arrivals.Append(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log arrival marker")
	}
	h.logger.InfoContext(ctx, "arrival marker recorded",
		"marker_id", a.ID,
		"exit_marker_id", a.ExitMarkerID,
		"destination", a.Destination,
	)
	for _, fn := range h.onArrival {
		h.notify(ctx, a.ID, func() { fn(a) })
	}
	return nil
}

// notify runs a user callback, logging rather than propagating a panic.
func (h *Handler) notify(ctx context.Context, markerID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "marker callback panicked", "marker_id", markerID, "panic", r)
		}
	}()
	fn()
}

// Markers returns retained departures, oldest first.
func (h *Handler) Markers(ctx context.Context) ([]*marker.ExitMarker, error) {
	return h.markers.List(ctx)
}

// Arrivals returns retained arrivals, oldest first.
func (h *Handler) Arrivals(ctx context.Context) ([]*marker.ArrivalMarker, error) {
	return h.arrivals.List(ctx)
}

// Clear drops all retained markers and arrivals.
func (h *Handler) Clear(ctx context.Context) error {
	if err := h.markers.Clear(ctx); err != nil {
		return err
	}
	return h.arrivals.Clear(ctx)
}

// MarkersJSON renders retained departures as an indented JSON array.
func (h *Handler) MarkersJSON(ctx context.Context) ([]byte, error) {
	markers, err := h.Markers(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := marker.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(markers); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
