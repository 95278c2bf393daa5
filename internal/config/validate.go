package config

import (
	"errors"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// Validate checks that cfg's values fall within the ranges spec.md §6
// requires, returning a joined *errs.Error list (kind InvalidThreshold or
// InvalidRange) describing every violation found. A nil return means cfg is
// safe to hand to the session orchestrator.
func Validate(cfg *ScribeConfig) error {
	var problems []error

	s := cfg.Speakers
	if s.MaxSpeakers < 1 || s.MaxSpeakers > 10 {
		problems = append(problems, errs.New(errs.InvalidRange, "speakers.max_speakers %d out of [1,10]", s.MaxSpeakers))
	}
	if s.MinSpeakers < 1 || s.MinSpeakers > s.MaxSpeakers {
		problems = append(problems, errs.New(errs.InvalidRange, "speakers.min_speakers %d out of [1,max_speakers]", s.MinSpeakers))
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		problems = append(problems, errs.New(errs.InvalidThreshold, "speakers.similarity_threshold %.3f out of [0,1]", s.SimilarityThreshold))
	}
	if s.ChangeDetectionThresh < 0 || s.ChangeDetectionThresh > 1 {
		problems = append(problems, errs.New(errs.InvalidThreshold, "speakers.speaker_change_detection_threshold %.3f out of [0,1]", s.ChangeDetectionThresh))
	}
	if s.MinSegmentDurationS < 0 {
		problems = append(problems, errs.New(errs.InvalidRange, "speakers.min_segment_duration %.3f must be >= 0", s.MinSegmentDurationS))
	}

	v := cfg.VAD
	if v.Threshold < 0 || v.Threshold > 1 {
		problems = append(problems, errs.New(errs.InvalidThreshold, "vad.threshold %.3f out of [0,1]", v.Threshold))
	}
	if v.MinSpeechDurationMs < 0 {
		problems = append(problems, errs.New(errs.InvalidRange, "vad.min_speech_duration_ms %d must be >= 0", v.MinSpeechDurationMs))
	}
	if v.MaxSpeechDurationMs <= v.MinSpeechDurationMs {
		problems = append(problems, errs.New(errs.InvalidRange, "vad.max_speech_duration_ms %d must exceed min_speech_duration_ms %d", v.MaxSpeechDurationMs, v.MinSpeechDurationMs))
	}

	b := cfg.Boundary
	if b.SoftMs <= 0 {
		problems = append(problems, errs.New(errs.InvalidRange, "boundary.soft_ms %d must be > 0", b.SoftMs))
	}
	if b.HardMs <= b.SoftMs {
		problems = append(problems, errs.New(errs.InvalidRange, "boundary.hard_ms %d must exceed soft_ms %d", b.HardMs, b.SoftMs))
	}
	if b.MaxBufferMs <= b.HardMs {
		problems = append(problems, errs.New(errs.InvalidRange, "boundary.max_buffer_ms %d must exceed hard_ms %d", b.MaxBufferMs, b.HardMs))
	}

	if cfg.ASR.Tier != "" && !cfg.ASR.Tier.IsValid() {
		problems = append(problems, errs.New(errs.InvalidRange, "asr.tier %q is invalid; valid values: Standard, HighAccuracy, Turbo", cfg.ASR.Tier))
	}

	h := cfg.Hardware
	if h.Acceleration != "" && !h.Acceleration.IsValid() {
		problems = append(problems, errs.New(errs.InvalidRange, "hardware_acceleration %q is invalid; valid values: Auto, CPU, Metal, CUDA", h.Acceleration))
	}
	if h.MaxMemoryMB < 0 {
		problems = append(problems, errs.New(errs.InvalidRange, "max_memory_mb %d must be >= 0", h.MaxMemoryMB))
	}

	return errors.Join(problems...)
}
