package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "passage/pkg/platform/audit"
	txcontext "passage/pkg/platform/tx"
)

// Schema creates the audit table. Applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	subject     TEXT NOT NULL,
	marker_id   TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	origin      TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	exit_type   TEXT NOT NULL DEFAULT '',
	policy      TEXT NOT NULL DEFAULT '',
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	actor_id    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, timestamp);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `
	SELECT category, timestamp, subject, marker_id, action, origin,
		   destination, exit_type, policy, decision, reason,
		   request_id, actor_id
	FROM audit_events`

// Append inserts an audit event. It joins the caller's transaction when the
// context carries one.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, subject, marker_id, action, origin,
			destination, exit_type, policy, decision, reason, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		event.Subject,
		event.MarkerID,
		event.Action,
		event.Origin,
		event.Destination,
		event.ExitType,
		event.Policy,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject DID, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE subject = $1
		ORDER BY timestamp ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the limit most recent events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (`+selectColumns+`
			ORDER BY timestamp DESC
			LIMIT $1
		) recent ORDER BY timestamp ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByActions returns events whose action is one of actions.
func (s *Store) ListByActions(ctx context.Context, actions []audit.AuditEvent) ([]audit.Event, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE action = ANY($1)
		ORDER BY timestamp ASC
	`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := []audit.Event{}
	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.Subject,
			&event.MarkerID,
			&event.Action,
			&event.Origin,
			&event.Destination,
			&event.ExitType,
			&event.Policy,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
