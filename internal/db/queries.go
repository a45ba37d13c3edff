package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// GetCollection returns the stored JSON document for name.
func (q *Queries) GetCollection(ctx context.Context, name string) ([]byte, bool, error) {
	var payload []byte
	err := q.Pool.QueryRow(ctx,
		"SELECT payload FROM collections WHERE name = $1",
		name,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return payload, true, nil
}

// PutCollection replaces the document for name.
func (q *Queries) PutCollection(ctx context.Context, name string, payload []byte) error {
	_, err := q.Pool.Exec(ctx,
		`INSERT INTO collections (name, payload, updated_at) VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		name, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to put collection %s: %w", name, err)
	}
	return nil
}
