package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voiceloom/meetscribe/internal/profile"
)

const profileColumns = `id, name, description, color, created_at, updated_at,
	identification_count, confidence_threshold, is_active, pitch_mean, speaking_rate_wpm`

// CreateProfile inserts a new profile row in a single transaction.
func (s *Store) CreateProfile(ctx context.Context, req profile.CreateProfileRequest) (profile.Profile, error) {
	threshold := req.ConfidenceThreshold
	if threshold == 0 {
		threshold = 0.7
	}

	p := profile.Profile{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		Description:         req.Description,
		Color:               req.Color,
		ConfidenceThreshold: threshold,
		IsActive:            true,
	}

	const q = `
		INSERT INTO speaker_profiles (id, name, description, color, confidence_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING created_at, updated_at`

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, p.ID, p.Name, p.Description, p.Color, p.ConfidenceThreshold).
			Scan(&p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		return profile.Profile{}, fmt.Errorf("profile/postgres: create profile: %w", err)
	}
	return p, nil
}

// GetProfile fetches a profile by ID.
func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM speaker_profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err == pgx.ErrNoRows {
		return profile.Profile{}, false, nil
	}
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("profile/postgres: get profile: %w", err)
	}
	return p, true, nil
}

// UpdateProfile applies only the fields set in req, transactionally.
func (s *Store) UpdateProfile(ctx context.Context, id string, req profile.UpdateProfileRequest) (profile.Profile, bool, error) {
	var p profile.Profile
	var found bool

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		sets := []string{"updated_at = now()"}
		args := []any{}
		next := func(v any) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}

		if req.Name != nil {
			sets = append(sets, "name = "+next(*req.Name))
		}
		if req.Description != nil {
			sets = append(sets, "description = "+next(*req.Description))
		}
		if req.Color != nil {
			sets = append(sets, "color = "+next(*req.Color))
		}
		if req.ConfidenceThreshold != nil {
			sets = append(sets, "confidence_threshold = "+next(*req.ConfidenceThreshold))
		}
		if req.IsActive != nil {
			sets = append(sets, "is_active = "+next(*req.IsActive))
		}

		args = append(args, id)
		q := fmt.Sprintf(`UPDATE speaker_profiles SET %s WHERE id = $%d`, joinComma(sets), len(args))

		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		row := tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM speaker_profiles WHERE id = $1`, id)
		p, err = scanProfile(row)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("profile/postgres: update profile: %w", err)
	}
	return p, found, nil
}

// DeleteProfile removes a profile and, via ON DELETE CASCADE, its
// embeddings and participation rows.
func (s *Store) DeleteProfile(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM speaker_profiles WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("profile/postgres: delete profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListProfiles returns a page of profiles, optionally filtered to active
// ones, ordered by name.
func (s *Store) ListProfiles(ctx context.Context, activeOnly bool, offset, limit int) ([]profile.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM speaker_profiles`
	var args []any
	if activeOnly {
		q += ` WHERE is_active = true`
	}
	q += ` ORDER BY name OFFSET $1 LIMIT $2`
	args = append(args, offset, limit)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("profile/postgres: list profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordParticipation upserts a meeting-participation row, summing speaking
// time and segment counts across multiple calls for the same session.
func (s *Store) RecordParticipation(ctx context.Context, mp profile.MeetingParticipation) error {
	const q = `
		INSERT INTO meeting_participation (session_id, profile_id, first_seen, last_seen, speaking_ms, segment_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, profile_id) DO UPDATE SET
			last_seen     = GREATEST(meeting_participation.last_seen, EXCLUDED.last_seen),
			first_seen    = LEAST(meeting_participation.first_seen, EXCLUDED.first_seen),
			speaking_ms   = meeting_participation.speaking_ms + EXCLUDED.speaking_ms,
			segment_count = meeting_participation.segment_count + EXCLUDED.segment_count`

	_, err := s.pool.Exec(ctx, q, mp.SessionID, mp.ProfileID, mp.FirstSeen, mp.LastSeen, mp.SpeakingMs, mp.SegmentCount)
	if err != nil {
		return fmt.Errorf("profile/postgres: record participation: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProfile(row scannable) (profile.Profile, error) {
	var p profile.Profile
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Color, &p.CreatedAt, &p.UpdatedAt,
		&p.IdentificationCount, &p.ConfidenceThreshold, &p.IsActive, &p.PitchMean, &p.SpeakingRateWPM,
	)
	return p, err
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
