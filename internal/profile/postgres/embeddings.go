package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/voiceloom/meetscribe/internal/profile"
)

// AddEmbedding inserts a voice embedding for a profile.
func (s *Store) AddEmbedding(ctx context.Context, emb profile.Embedding) error {
	if emb.ID == "" {
		emb.ID = uuid.NewString()
	}
	vec := pgvector.NewVector(emb.Vector)

	const q = `
		INSERT INTO voice_embeddings (id, profile_id, vector, dimensions, model_name, quality_score, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q, emb.ID, emb.ProfileID, vec, emb.Dimensions, emb.ModelName, emb.Quality, emb.DurationMs)
	if err != nil {
		return fmt.Errorf("profile/postgres: add embedding: %w", err)
	}
	return nil
}

// ListEmbeddings returns a profile's embeddings, best quality first, per
// §4.J's find_similar_speakers ordering.
func (s *Store) ListEmbeddings(ctx context.Context, profileID string) ([]profile.Embedding, error) {
	const q = `
		SELECT id, profile_id, vector, dimensions, model_name, quality_score, duration_ms, created_at
		FROM voice_embeddings WHERE profile_id = $1
		ORDER BY quality_score DESC, created_at DESC`

	rows, err := s.pool.Query(ctx, q, profileID)
	if err != nil {
		return nil, fmt.Errorf("profile/postgres: list embeddings: %w", err)
	}
	defer rows.Close()

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (profile.Embedding, error) {
		var e profile.Embedding
		var vec pgvector.Vector
		if err := row.Scan(&e.ID, &e.ProfileID, &vec, &e.Dimensions, &e.ModelName, &e.Quality, &e.DurationMs, &e.CreatedAt); err != nil {
			return profile.Embedding{}, err
		}
		e.Vector = vec.Slice()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("profile/postgres: scan embeddings: %w", err)
	}
	return out, nil
}

// DeleteEmbedding removes a single embedding by ID, used to evict the
// lowest-quality entry when a profile's embedding cap (§4.J) is exceeded.
func (s *Store) DeleteEmbedding(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM voice_embeddings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("profile/postgres: delete embedding: %w", err)
	}
	return nil
}
