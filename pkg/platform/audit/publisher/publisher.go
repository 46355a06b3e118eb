// Package publisher emits audit events to a store and any number of broker
// sinks, either synchronously or through a bounded async buffer.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "passage/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger

	bufferSize int
	buffer     chan audit.Event
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches Emit to non-blocking mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithSink fans events out to an additional sink after the store.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.buffer = make(chan audit.Event, p.bufferSize)
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records event. Timestamp and Category are filled in when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.buffer == nil {
		return p.write(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action, "marker_id", event.MarkerID)
		return ErrBufferFull
	}
}

// List returns the events recorded for a subject DID.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Recent returns the latest events across subjects.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting events and drains the async buffer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.write(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}

// write persists to the store first; sink failures are logged only.
func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink failed", "action", event.Action, "error", err)
		}
	}
	return nil
}
