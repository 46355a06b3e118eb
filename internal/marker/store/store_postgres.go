package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"passage/pkg/domain"
	"passage/pkg/marker"
	"passage/pkg/platform/sentinel"
	txcontext "passage/pkg/platform/tx"
)

// Schema creates the marker archive. Applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS markers (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	subject        TEXT NOT NULL,
	exit_marker_id TEXT NOT NULL DEFAULT '',
	timestamp      TIMESTAMPTZ NOT NULL,
	document       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS markers_subject_idx ON markers (subject, timestamp);
CREATE INDEX IF NOT EXISTS markers_exit_ref_idx ON markers (exit_marker_id) WHERE exit_marker_id <> '';
`

// PostgresStore archives markers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate marker schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) SaveExit(ctx context.Context, m *marker.ExitMarker) error {
	rec, err := ExitRecord(m)
	if err != nil {
		return err
	}
	return s.insert(ctx, rec)
}

func (s *PostgresStore) SaveArrival(ctx context.Context, a *marker.ArrivalMarker) error {
	rec, err := ArrivalRecord(a)
	if err != nil {
		return err
	}
	return s.insert(ctx, rec)
}

func (s *PostgresStore) insert(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO markers (id, kind, subject, exit_marker_id, timestamp, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID,
		string(rec.Kind),
		rec.Subject,
		rec.ExitMarkerID,
		rec.Timestamp,
		string(rec.Document),
	)
	if err != nil {
		return fmt.Errorf("insert marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert marker: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("marker %s: %w", rec.ID, sentinel.ErrConflict)
	}
	return nil
}

const selectColumns = `SELECT id, kind, subject, exit_marker_id, timestamp, document FROM markers`

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("marker %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find marker: %w", err)
	}
	return &rec, nil
}

// FindByIDs fetches several markers in one round trip. Unknown ids are
// skipped; results are ordered by timestamp.
func (s *PostgresStore) FindByIDs(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE id = ANY($1)
		ORDER BY timestamp ASC, id ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find markers: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE subject = $1
		ORDER BY timestamp ASC, id ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec  Record
		kind string
		doc  []byte
	)
	if err := row.Scan(&rec.ID, &kind, &rec.Subject, &rec.ExitMarkerID, &rec.Timestamp, &doc); err != nil {
		return Record{}, err
	}
	rec.Kind = domain.MarkerKind(kind)
	rec.Document = doc
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	return out, nil
}
