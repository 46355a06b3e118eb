package service

import (
	"context"
	"errors"

	"passage/internal/marker/store"
	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/sentinel"
)

// Get returns an archived marker by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Record, error) {
	if _, err := domain.ParseMarkerID(id); err != nil {
		return nil, err
	}
	rec, err := s.archive.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "marker not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load marker")
	}
	return rec, nil
}

// History returns every archived marker about subject, oldest first.
func (s *Service) History(ctx context.Context, subject string) ([]store.Record, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	records, err := s.archive.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list markers")
	}
	return records, nil
}

// Recent returns up to limit of the most recently issued markers, oldest
// first. A non-positive limit returns everything retained.
func (s *Service) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	records, err := s.recent.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read recent markers")
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (s *Service) remember(ctx context.Context, rec store.Record) {
	if err := s.recent.Append(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to log recent marker", "marker_id", rec.ID, "error", err)
	}
}

// emit publishes an audit event. Audit failures never fail the operation.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestID(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"marker_id", event.MarkerID,
			"error", err,
		)
	}
}
