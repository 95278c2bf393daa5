package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voiceloom/meetscribe/internal/profile"
)

// Store is the pgx-backed implementation of profile.Store.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

var _ profile.Store = (*Store)(nil)

// NewStore opens a connection pool to dsn, registers pgvector types, and
// runs Migrate so every table from schema.go exists before use.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("profile/postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("profile/postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile/postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, dimensions: embeddingDimensions}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// LoadAllEmbeddings returns every stored embedding grouped by profile ID,
// used to rebuild the lshindex.Index on process start per §4.J.
func (s *Store) LoadAllEmbeddings(ctx context.Context) (map[string][][]float32, error) {
	rows, err := s.pool.Query(ctx, `SELECT profile_id, vector FROM voice_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("profile/postgres: load all embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][][]float32)
	for rows.Next() {
		var profileID string
		var vec pgvector.Vector
		if err := rows.Scan(&profileID, &vec); err != nil {
			return nil, fmt.Errorf("profile/postgres: scan embedding row: %w", err)
		}
		out[profileID] = append(out[profileID], vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
