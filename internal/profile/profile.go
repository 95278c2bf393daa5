// Package profile implements §4.J: the process-wide Speaker Profile Store —
// a relational store for profiles/embeddings/meeting-participation rows,
// plus an in-memory approximate-nearest-neighbor index rebuilt from it on
// load. Grounded on original_source's storage/speaker_store.rs (schema
// shape, CRUD surface) and storage/embedding_index.rs (LSH query path),
// reworked onto the teacher's pgx/pgvector stack via the
// MrWong99-glyphoxa pkg/memory/postgres idiom instead of rusqlite.
package profile

import (
	"context"
	"time"
)

// Profile is a persisted speaker identity, independent of any one session's
// ephemeral cluster IDs.
type Profile struct {
	ID                   string
	Name                 string
	Description          string
	Color                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	IdentificationCount  int
	ConfidenceThreshold  float32
	IsActive             bool
	PitchMean            float32
	SpeakingRateWPM      float32
}

// Embedding is one stored voiceprint vector for a profile.
type Embedding struct {
	ID         string
	ProfileID  string
	Vector     []float32
	Dimensions int
	ModelName  string
	Quality    float32
	DurationMs int64
	CreatedAt  time.Time
}

// MeetingParticipation records that a profile spoke during a given session.
type MeetingParticipation struct {
	SessionID    string
	ProfileID    string
	FirstSeen    time.Time
	LastSeen     time.Time
	SpeakingMs   int64
	SegmentCount int
}

// CreateProfileRequest is the input to Store.CreateProfile.
type CreateProfileRequest struct {
	Name                string
	Description         string
	Color               string
	ConfidenceThreshold float32
}

// UpdateProfileRequest carries only the fields to change; zero-value fields
// other than the explicit pointers are left untouched.
type UpdateProfileRequest struct {
	Name                *string
	Description         *string
	Color               *string
	ConfidenceThreshold *float32
	IsActive            *bool
}

// SimilarProfile is one match produced by a similarity search.
type SimilarProfile struct {
	Profile           Profile
	SimilarityScore   float32
	MatchingEmbeddings int
}

// Store is the relational half of §4.J: profiles, embeddings, and
// meeting-participation rows, with transactional mutations.
type Store interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, bool, error)
	UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (Profile, bool, error)
	DeleteProfile(ctx context.Context, id string) (bool, error)
	ListProfiles(ctx context.Context, activeOnly bool, offset, limit int) ([]Profile, error)

	AddEmbedding(ctx context.Context, emb Embedding) error
	ListEmbeddings(ctx context.Context, profileID string) ([]Embedding, error)
	DeleteEmbedding(ctx context.Context, id string) error

	RecordParticipation(ctx context.Context, mp MeetingParticipation) error

	Close()
}

// Index is the approximate-nearest-neighbor half of §4.J: an in-memory LSH
// index that is rebuilt from the Store on process start and kept in sync on
// every Store mutation.
type Index interface {
	Add(profileID string, vec []float32) error
	Remove(profileID string)
	Rebuild(embeddings map[string][][]float32) error
	FindSimilar(query []float32, threshold float32, maxResults int) ([]Match, error)
	Stats() IndexStats
}

// Match is one candidate returned by Index.FindSimilar: the owning profile
// ID and its best cosine similarity against query.
type Match struct {
	ProfileID  string
	Similarity float32
}

// IndexStats mirrors the teacher's get_stats diagnostics.
type IndexStats struct {
	TotalProfiles      int
	TotalEmbeddings    int
	TotalBuckets       int
	TotalBucketEntries int
	Dimensions         int
	NumHashes          int
}
