// Package postgres implements §4.J's relational store over pgx/pgvector,
// grounded on original_source's storage/speaker_store.rs (schema fields,
// CRUD surface, similarity-search join) ported from its rusqlite/blob
// encoding onto the teacher's pgx stack, using the
// MrWong99-glyphoxa pkg/memory/postgres idiom (pgxpool, pgvector.Vector
// registration, idempotent migration) in place of the original's SQLite
// TEXT-encoded-everything schema.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlProfiles = `
CREATE TABLE IF NOT EXISTS speaker_profiles (
    id                   TEXT        PRIMARY KEY,
    name                 TEXT        NOT NULL,
    description          TEXT        NOT NULL DEFAULT '',
    color                TEXT        NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    identification_count INTEGER     NOT NULL DEFAULT 0,
    confidence_threshold REAL        NOT NULL DEFAULT 0.7,
    is_active            BOOLEAN     NOT NULL DEFAULT true,
    pitch_mean           REAL        NOT NULL DEFAULT 0,
    speaking_rate_wpm    REAL        NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_speaker_profiles_active ON speaker_profiles (is_active);
`

func ddlEmbeddings(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS voice_embeddings (
    id               TEXT        PRIMARY KEY,
    profile_id       TEXT        NOT NULL REFERENCES speaker_profiles (id) ON DELETE CASCADE,
    vector           vector(%d)  NOT NULL,
    dimensions       INTEGER     NOT NULL,
    model_name       TEXT        NOT NULL DEFAULT '',
    quality_score    REAL        NOT NULL DEFAULT 0,
    duration_ms      BIGINT      NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_voice_embeddings_profile ON voice_embeddings (profile_id);
CREATE INDEX IF NOT EXISTS idx_voice_embeddings_hnsw ON voice_embeddings USING hnsw (vector vector_cosine_ops);
`, dimensions)
}

const ddlParticipation = `
CREATE TABLE IF NOT EXISTS meeting_participation (
    session_id    TEXT        NOT NULL,
    profile_id    TEXT        NOT NULL REFERENCES speaker_profiles (id) ON DELETE CASCADE,
    first_seen    TIMESTAMPTZ NOT NULL,
    last_seen     TIMESTAMPTZ NOT NULL,
    speaking_ms   BIGINT      NOT NULL DEFAULT 0,
    segment_count INTEGER     NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, profile_id)
);

CREATE INDEX IF NOT EXISTS idx_meeting_participation_profile ON meeting_participation (profile_id);
`

// Migrate creates or ensures every §4.J table and the pgvector extension
// exist. Idempotent; safe to call on every process start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{ddlProfiles, ddlEmbeddings(embeddingDimensions), ddlParticipation}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("profile/postgres: migrate: %w", err)
		}
	}
	return nil
}
