package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists each room as a JSONB document in the rooms table.
// The schema lives in internal/database/migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
	}
}

// Save upserts the document; kind and status are copied into columns so
// cleanup can filter without decoding.
func (s *PostgresStore) Save(ctx context.Context, r *Room) error {
	doc, err := Encode(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rooms (name, kind, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET kind = EXCLUDED.kind,
		    status = EXCLUDED.status,
		    doc = EXCLUDED.doc,
		    updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		r.Name,
		string(r.Kind),
		string(r.Status),
		doc,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", r.Name, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (*Room, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM rooms WHERE name = $1`, name).Scan(&doc)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", name, err)
	}
	return Decode(doc)
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan room names: %w", err)
	}
	return names, nil
}

// FinishedBefore lists finished rooms last updated before cutoff.
func (s *PostgresStore) FinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name FROM rooms WHERE status = $1 AND updated_at < $2 ORDER BY name`,
		string(StatusFinished), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query finished rooms: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan finished rooms: %w", err)
	}
	return names, nil
}
