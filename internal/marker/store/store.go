// Package store archives signed markers so they can be fetched by id after
// the fact. Archived documents are kept byte-for-byte as issued.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"passage/pkg/domain"
	"passage/pkg/marker"
)

// Record is an archived marker.
type Record struct {
	ID      string            `json:"id"`
	Kind    domain.MarkerKind `json:"kind"`
	Subject string            `json:"subject"`
	// ExitMarkerID is set for arrivals.
	ExitMarkerID string          `json:"exitMarkerId,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Document     json.RawMessage `json:"document"`
}

// Store persists markers. Saving an id twice returns sentinel.ErrConflict;
// looking up an unknown id returns sentinel.ErrNotFound.
type Store interface {
	SaveExit(ctx context.Context, m *marker.ExitMarker) error
	SaveArrival(ctx context.Context, a *marker.ArrivalMarker) error
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByIDs(ctx context.Context, ids []string) ([]Record, error)
	ListBySubject(ctx context.Context, subject string) ([]Record, error)
}

// ExitRecord builds the archive form of m.
func ExitRecord(m *marker.ExitMarker) (Record, error) {
	doc, err := marker.Marshal(m)
	if err != nil {
		return Record{}, fmt.Errorf("encode exit marker: %w", err)
	}
	return Record{
		ID:        m.ID,
		Kind:      domain.MarkerKindExit,
		Subject:   m.Subject,
		Timestamp: m.Timestamp,
		Document:  doc,
	}, nil
}

// ArrivalRecord builds the archive form of a.
func ArrivalRecord(a *marker.ArrivalMarker) (Record, error) {
	doc, err := marker.Marshal(a)
	if err != nil {
		return Record{}, fmt.Errorf("encode arrival marker: %w", err)
	}
	return Record{
		ID:           a.ID,
		Kind:         domain.MarkerKindArrival,
		Subject:      a.Subject,
		ExitMarkerID: a.ExitMarkerID,
		Timestamp:    a.Timestamp,
		Document:     doc,
	}, nil
}
