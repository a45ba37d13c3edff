package store

import (
	"context"

	"cafeplease/internal/db"
)

// PostgresBlobs keeps collections in the collections table, see
// internal/db/migrations.
type PostgresBlobs struct {
	queries *db.Queries
}

func NewPostgresBlobs(queries *db.Queries) *PostgresBlobs {
	return &PostgresBlobs{queries: queries}
}

func (p *PostgresBlobs) Get(ctx context.Context, name string) ([]byte, bool, error) {
	return p.queries.GetCollection(ctx, name)
}

func (p *PostgresBlobs) Put(ctx context.Context, name string, data []byte) error {
	return p.queries.PutCollection(ctx, name, data)
}
