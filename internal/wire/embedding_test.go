package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.1, -0.2, 0.99999, 0, -1}
	blob := EncodeEmbedding(vec)

	got, err := DecodeEmbedding(blob)
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestDecodeEmbeddingRejectsTruncatedBlob(t *testing.T) {
	blob := EncodeEmbedding([]float32{1, 2, 3})
	_, err := DecodeEmbedding(blob[:len(blob)-1])
	assert.Error(t, err)
}

func TestWriteReadEmbeddingStream(t *testing.T) {
	vec := []float32{1, 2, 3, 4}
	var buf bytes.Buffer
	require.NoError(t, WriteEmbedding(&buf, vec))

	got, err := ReadEmbedding(&buf)
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}
