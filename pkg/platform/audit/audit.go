// Package audit records what the marker service did: markers issued,
// admissions evaluated, transfers verified and verification failures.
package audit

import "context"

// Sink receives audit events. Brokers implement only this.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable Sink.
type Store interface {
	Sink
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
