package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voiceloom/meetscribe/internal/profile"
	"github.com/voiceloom/meetscribe/internal/profile/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if MEETSCRIBE_TEST_POSTGRES_DSN is not set — these exercise a real
// pgvector-enabled PostgreSQL instance and are not run by default.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MEETSCRIBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEETSCRIBE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()
	store, err := postgres.NewStore(ctx, testDSN(t), testEmbeddingDim)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestCreateAndGetProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreateProfile(ctx, profile.CreateProfileRequest{Name: "John Doe", Description: "Test speaker"})
	require.NoError(t, err)
	require.Equal(t, "John Doe", p.Name)
	require.True(t, p.IsActive)

	got, found, err := store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, p.ID, got.ID)

	require.NoError(t, store.AddEmbedding(ctx, profile.Embedding{
		ProfileID:  p.ID,
		Vector:     []float32{1, 0.5, -0.3, 2.1},
		Dimensions: testEmbeddingDim,
		ModelName:  "test_model",
		Quality:    0.9,
	}))

	embs, err := store.ListEmbeddings(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, embs, 1)
	require.Equal(t, []float32{1, 0.5, -0.3, 2.1}, embs[0].Vector)

	deleted, err := store.DeleteProfile(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestUpdateProfilePartialFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreateProfile(ctx, profile.CreateProfileRequest{Name: "Original"})
	require.NoError(t, err)

	newName := "Renamed"
	updated, found, err := store.UpdateProfile(ctx, p.ID, profile.UpdateProfileRequest{Name: &newName})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Renamed", updated.Name)
}

func TestRecordParticipationAccumulates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreateProfile(ctx, profile.CreateProfileRequest{Name: "Speaker"})
	require.NoError(t, err)

	mp := profile.MeetingParticipation{SessionID: "s1", ProfileID: p.ID, SpeakingMs: 1000, SegmentCount: 1}
	require.NoError(t, store.RecordParticipation(ctx, mp))
	require.NoError(t, store.RecordParticipation(ctx, mp))
}
