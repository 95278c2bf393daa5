package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voiceloom/meetscribe/internal/embed"
)

func emb(vec []float32, startMs, endMs int64) embed.Embedding {
	return embed.Embedding{Vector: vec, StartMs: startMs, EndMs: endMs, Confidence: 1}
}

func TestOnlineClustererGroupsSimilarEmbeddings(t *testing.T) {
	c, err := NewOnline(Config{SimilarityThreshold: 0.8, MinSpeakers: 1, MaxSpeakers: 10})
	require.NoError(t, err)

	a := emb([]float32{1, 0}, 0, 1000)
	b := emb([]float32{0.99, 0.14}, 1000, 2000)
	other := emb([]float32{0, 1}, 2000, 3000)

	id1 := c.Assign(a)
	id2 := c.Assign(b)
	id3 := c.Assign(other)

	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, id3)
}

func TestOnlineClustererNeverRevokesLabel(t *testing.T) {
	c, err := NewOnline(Config{SimilarityThreshold: 0.99, MinSpeakers: 1, MaxSpeakers: 10})
	require.NoError(t, err)
	a := emb([]float32{1, 0}, 0, 1000)
	id := c.Assign(a)
	// A dissimilar embedding must not alter the label already returned for a.
	c.Assign(emb([]float32{0, 1}, 1000, 2000))
	speakers := c.Speakers()
	require.Contains(t, speakers[id], a)
}

func TestBatchClustererMergesSimilarAndEnforcesMax(t *testing.T) {
	cfg := Config{SimilarityThreshold: 0.5, MinSpeakers: 1, MaxSpeakers: 2}
	b, err := NewBatch(cfg)
	require.NoError(t, err)

	embeddings := []embed.Embedding{
		emb([]float32{1, 0}, 0, 1000),
		emb([]float32{0.95, 0.1}, 1000, 2000),
		emb([]float32{0, 1}, 2000, 3000),
		emb([]float32{0.05, 0.95}, 3000, 4000),
	}
	clusters := b.Cluster(embeddings)
	require.LessOrEqual(t, len(clusters), 2)
}

func TestBatchClustererKeepsAtLeastMinSpeakers(t *testing.T) {
	cfg := Config{SimilarityThreshold: 0.99, MinSpeakers: 2, MaxSpeakers: 10}
	b, err := NewBatch(cfg)
	require.NoError(t, err)

	embeddings := []embed.Embedding{
		emb([]float32{1, 0}, 0, 1000),
		emb([]float32{1, 0}, 1000, 2000),
		emb([]float32{1, 0}, 2000, 3000),
	}
	clusters := b.Cluster(embeddings)
	require.GreaterOrEqual(t, len(clusters), 2)
}

func TestBatchClustererEmptyInput(t *testing.T) {
	b, err := NewBatch(Config{SimilarityThreshold: 0.5, MinSpeakers: 1, MaxSpeakers: 5})
	require.NoError(t, err)
	require.Empty(t, b.Cluster(nil))
}

func TestConfigValidation(t *testing.T) {
	_, err := NewOnline(Config{SimilarityThreshold: 1.5, MinSpeakers: 1, MaxSpeakers: 2})
	require.Error(t, err)

	_, err = NewBatch(Config{SimilarityThreshold: 0.5, MinSpeakers: 5, MaxSpeakers: 2})
	require.Error(t, err)
}
