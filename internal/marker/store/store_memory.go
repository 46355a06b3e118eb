package store

import (
	"context"
	"sort"
	"sync"

	"passage/pkg/marker"
	"passage/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) SaveExit(_ context.Context, m *marker.ExitMarker) error {
	rec, err := ExitRecord(m)
	if err != nil {
		return err
	}
	return s.put(rec)
}

func (s *InMemoryStore) SaveArrival(_ context.Context, a *marker.ArrivalMarker) error {
	rec, err := ArrivalRecord(a)
	if err != nil {
		return err
	}
	return s.put(rec)
}

func (s *InMemoryStore) put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

// FindByIDs returns the records that exist, in the order of ids.
func (s *InMemoryStore) FindByIDs(_ context.Context, ids []string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListBySubject returns a subject's markers, oldest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, rec := range s.records {
		if rec.Subject == subject {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
