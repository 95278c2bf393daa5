package profile

import (
	"context"
	"fmt"
)

// ClusterEmbedding is one session-local cluster's representative embedding,
// handed to the Reconciler at session end per §4.J's identification policy.
type ClusterEmbedding struct {
	ClusterID  string
	Vector     []float32
	Quality    float32
	ModelName  string
	DurationMs int64
}

// ReconcileConfig holds the §4.J identification-policy tunables from §6.
type ReconcileConfig struct {
	SimilarityThreshold     float32
	MaxEmbeddingsPerProfile int
}

// Reconciler implements §4.J's session-end identification policy: for each
// session-local cluster, find the best profile match via the approximate
// index, relabel to that profile on a hit above threshold, or mint a new
// profile on a miss.
type Reconciler struct {
	store Store
	index Index
	cfg   ReconcileConfig
}

func NewReconciler(store Store, index Index, cfg ReconcileConfig) *Reconciler {
	return &Reconciler{store: store, index: index, cfg: cfg}
}

// Reconcile returns a map from session-local cluster ID to the persistent
// profile ID it was matched or minted to, and records meeting participation
// for each. Writes are ordered profile-write-before-index-insert on the
// append path, per §4.J's atomicity rule.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string, clusters []ClusterEmbedding) (map[string]string, error) {
	assignments := make(map[string]string, len(clusters))

	for _, c := range clusters {
		profileID, err := r.matchOrMint(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("profile: reconcile cluster %s: %w", c.ClusterID, err)
		}
		assignments[c.ClusterID] = profileID

		if err := r.store.RecordParticipation(ctx, MeetingParticipation{
			SessionID:    sessionID,
			ProfileID:    profileID,
			SegmentCount: 1,
		}); err != nil {
			return nil, fmt.Errorf("profile: record participation for %s: %w", profileID, err)
		}
	}

	return assignments, nil
}

func (r *Reconciler) matchOrMint(ctx context.Context, c ClusterEmbedding) (string, error) {
	matches, err := r.index.FindSimilar(c.Vector, r.cfg.SimilarityThreshold, 1)
	if err != nil {
		return "", err
	}

	var profileID string
	if len(matches) > 0 {
		profileID = matches[0].ProfileID
	} else {
		p, err := r.store.CreateProfile(ctx, CreateProfileRequest{Name: "Unnamed speaker"})
		if err != nil {
			return "", err
		}
		profileID = p.ID
	}

	if err := r.appendEmbedding(ctx, profileID, c); err != nil {
		return "", err
	}
	return profileID, nil
}

// appendEmbedding writes the new embedding (store, then index), then
// enforces the per-profile embedding cap by evicting the lowest-quality
// entry on overflow, per §4.J.
func (r *Reconciler) appendEmbedding(ctx context.Context, profileID string, c ClusterEmbedding) error {
	if err := r.store.AddEmbedding(ctx, Embedding{
		ProfileID:  profileID,
		Vector:     c.Vector,
		Dimensions: len(c.Vector),
		ModelName:  c.ModelName,
		Quality:    c.Quality,
		DurationMs: c.DurationMs,
	}); err != nil {
		return err
	}
	if err := r.index.Add(profileID, c.Vector); err != nil {
		return err
	}

	if r.cfg.MaxEmbeddingsPerProfile <= 0 {
		return nil
	}

	embeddings, err := r.store.ListEmbeddings(ctx, profileID)
	if err != nil {
		return err
	}
	if len(embeddings) <= r.cfg.MaxEmbeddingsPerProfile {
		return nil
	}

	// embeddings is ordered quality DESC, created_at DESC: the lowest-quality
	// entry is last.
	lowest := embeddings[len(embeddings)-1]
	if err := r.store.DeleteEmbedding(ctx, lowest.ID); err != nil {
		return err
	}

	r.index.Remove(profileID)
	for _, e := range embeddings[:len(embeddings)-1] {
		if err := r.index.Add(profileID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}
