package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voiceloom/meetscribe/internal/asr"
	"github.com/voiceloom/meetscribe/internal/config"
)

func TestToSessionConfigCarriesOverriddenFields(t *testing.T) {
	cfg := config.Default()
	cfg.Speakers.MaxSpeakers = 6
	cfg.Speakers.SimilarityThreshold = 0.9
	cfg.ASR.Tier = config.ASRTurbo
	cfg.ASR.Language = "fr"
	cfg.Boundary.MaxBufferMs = 12000

	sc := config.ToSessionConfig(cfg)

	assert.Equal(t, 6, sc.Cluster.MaxSpeakers)
	assert.InDelta(t, 0.9, sc.Cluster.SimilarityThreshold, 1e-6)
	assert.Equal(t, asr.Turbo, sc.ASRTier)
	assert.Equal(t, "fr", sc.ASRLanguage)
	assert.Equal(t, int64(12000), sc.MaxBufferMs)
}

func TestToSessionConfigDefaultsASRTierToStandard(t *testing.T) {
	sc := config.ToSessionConfig(config.Default())
	assert.Equal(t, asr.Standard, sc.ASRTier)
}
