package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voiceloom/meetscribe/internal/config"
)

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, config.Validate(config.Default()))
}

func TestValidateRejectsOutOfRangeSimilarityThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Speakers.SimilarityThreshold = 1.5
	assert.Error(t, config.Validate(cfg))
}

func TestValidateRejectsMinSpeakersAboveMax(t *testing.T) {
	cfg := config.Default()
	cfg.Speakers.MaxSpeakers = 2
	cfg.Speakers.MinSpeakers = 5
	assert.Error(t, config.Validate(cfg))
}

func TestValidateRejectsNonMonotonicBoundaryMs(t *testing.T) {
	cfg := config.Default()
	cfg.Boundary.HardMs = cfg.Boundary.SoftMs
	assert.Error(t, config.Validate(cfg))
}

func TestValidateRejectsInvalidASRTier(t *testing.T) {
	cfg := config.Default()
	cfg.ASR.Tier = "Ludicrous"
	assert.Error(t, config.Validate(cfg))
}

func TestValidateRejectsInvalidAccelerator(t *testing.T) {
	cfg := config.Default()
	cfg.Hardware.Acceleration = "Quantum"
	assert.Error(t, config.Validate(cfg))
}

func TestValidateJoinsMultipleProblems(t *testing.T) {
	cfg := config.Default()
	cfg.Speakers.SimilarityThreshold = -1
	cfg.VAD.Threshold = 2
	err := config.Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
	assert.Contains(t, err.Error(), "vad.threshold")
}
