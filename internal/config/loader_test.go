package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceloom/meetscribe/internal/config"
)

const sampleYAML = `
speakers:
  max_speakers: 4
  min_speakers: 2
  similarity_threshold: 0.8
vad:
  threshold: 0.6
  min_speech_duration_ms: 300
  max_speech_duration_ms: 45000
boundary:
  soft_ms: 500
  hard_ms: 1500
  max_buffer_ms: 20000
asr:
  tier: HighAccuracy
  language: de
hardware:
  hardware_acceleration: CUDA
  max_memory_mb: 4096
`

func TestLoadFromReaderAppliesOverridesOntoDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Speakers.MaxSpeakers)
	assert.Equal(t, 2, cfg.Speakers.MinSpeakers)
	assert.InDelta(t, 0.8, cfg.Speakers.SimilarityThreshold, 1e-9)
	assert.Equal(t, config.ASRHighAccuracy, cfg.ASR.Tier)
	assert.Equal(t, "de", cfg.ASR.Language)
	assert.Equal(t, config.AccelCUDA, cfg.Hardware.Acceleration)

	// Untouched sections keep their Default() values.
	assert.True(t, cfg.Streaming.Enabled)
	assert.Equal(t, 256, cfg.Speakers.EmbeddingDimension)
}

func TestLoadFromReaderEmptyYieldsDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("speakers:\n  bogus_field: 1\n"))
	assert.Error(t, err)
}

func TestLoadFromReaderResolvesDeprecatedClusteringThresholdAlias(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("speakers:\n  clustering_threshold: 0.42\n"))
	require.NoError(t, err)
	assert.InDelta(t, 0.42, cfg.Speakers.SimilarityThreshold, 1e-9)
	assert.Zero(t, cfg.Speakers.ClusteringThreshold)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path/scribe.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}
