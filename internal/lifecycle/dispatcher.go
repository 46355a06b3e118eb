// Package lifecycle turns job-completion events from an agent runtime into
// EXIT (and optionally ARRIVAL) markers.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EventKind is the point in a job's life an Event reports.
type EventKind string

const (
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is fired by the runtime. Err is set for EventError.
type Event struct {
	Kind   EventKind
	Source string
	Err    error
}

// Listener reacts to an event. Errors are logged by the dispatcher.
type Listener func(ctx context.Context, ev Event) error

// Dispatcher fans events out to registered listeners in registration order.
// A failing or panicking listener never reaches the caller of Fire and does
// not stop later listeners.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
	logger    *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		listeners: make(map[EventKind][]Listener),
		logger:    logger,
	}
}

// Register adds l for kind.
func (d *Dispatcher) Register(kind EventKind, l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[kind] = append(d.listeners[kind], l)
}

// Fire delivers ev to every listener for ev.Kind and returns the number of
// listeners that failed.
func (d *Dispatcher) Fire(ctx context.Context, ev Event) int {
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners[ev.Kind]...)
	d.mu.RUnlock()

	failed := 0
	for i, l := range listeners {
		if err := d.call(ctx, l, ev); err != nil {
			failed++
			d.logger.ErrorContext(ctx, "lifecycle listener failed",
				"event", string(ev.Kind),
				"source", ev.Source,
				"listener", i,
				"error", err,
			)
		}
	}
	return failed
}

func (d *Dispatcher) call(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l(ctx, ev)
}
