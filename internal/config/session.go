package config

import (
	"github.com/voiceloom/meetscribe/internal/asr"
	"github.com/voiceloom/meetscribe/internal/session"
)

// ToSessionConfig translates a validated ScribeConfig into the
// session.Config the orchestrator actually consumes, layering the §6
// configuration keys onto session.DefaultConfig's stage defaults so any
// field ScribeConfig leaves zero still has a sane value.
func ToSessionConfig(cfg *ScribeConfig) session.Config {
	out := session.DefaultConfig()

	out.VAD.Threshold = float32(cfg.VAD.Threshold)
	out.VAD.AdaptiveThreshold = cfg.VAD.AdaptiveThreshold
	out.VAD.MinSpeechMs = cfg.VAD.MinSpeechDurationMs
	out.VAD.MaxSpeechMs = cfg.VAD.MaxSpeechDurationMs

	out.Boundary.SoftBoundaryMs = cfg.Boundary.SoftMs
	out.Boundary.HardBoundaryMs = cfg.Boundary.HardMs
	out.Boundary.MaxBufferMs = cfg.Boundary.MaxBufferMs
	out.MaxBufferMs = cfg.Boundary.MaxBufferMs

	out.Cluster.SimilarityThreshold = float32(cfg.Speakers.SimilarityThreshold)
	out.Cluster.MinSpeakers = cfg.Speakers.MinSpeakers
	out.Cluster.MaxSpeakers = cfg.Speakers.MaxSpeakers

	out.ASRTier = asrTier(cfg.ASR.Tier)
	out.ASRLanguage = cfg.ASR.Language
	out.EnableWordTimestamps = cfg.ASR.EnableWordTimestamps

	return out
}

func asrTier(t ASRTier) asr.Tier {
	switch t {
	case ASRHighAccuracy:
		return asr.HighAccuracy
	case ASRTurbo:
		return asr.Turbo
	default:
		return asr.Standard
	}
}
