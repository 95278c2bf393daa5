package main

import (
	"context"
	"path/filepath"

	"github.com/voiceloom/meetscribe/internal/asr"
	"github.com/voiceloom/meetscribe/internal/config"
	"github.com/voiceloom/meetscribe/internal/embed"
	"github.com/voiceloom/meetscribe/internal/models"
	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/internal/session"
	"github.com/voiceloom/meetscribe/internal/vad"
)

var backendLog = obs.New("scribed.backends")

// resolveBackends asks the model manager for every (role, tier) artifact
// §4.K names and wraps each one behind its stage's Backend interface. A
// tier whose model cannot be resolved (fetched and verified) or loaded is
// skipped with a warning
// rather than failing the whole daemon — the ASR engine tolerates a
// partial tier map (§7: repeated ASR failure degrades to "no-ASR" mode,
// not a fatal start).
func resolveBackends(ctx context.Context, mgr *models.Manager, cfg *config.ScribeConfig) (session.Backends, []string) {
	var warnings []string
	var backends session.Backends

	accelProvider := hardwareProvider(cfg.Hardware.Acceleration)

	asrBackends := make(map[asr.Tier]asr.Backend)
	for _, tier := range []asr.Tier{asr.Standard, asr.HighAccuracy, asr.Turbo} {
		path, err := mgr.Resolve(ctx, models.RoleASR, models.Tier(tier), nil)
		if err != nil {
			backendLog.Warnf("asr tier %s unavailable: %v", tier, err)
			warnings = append(warnings, "asr tier "+string(tier)+" unavailable: "+err.Error())
			continue
		}
		backend, err := asr.NewSherpaBackend(tier, singleFileParaformer(path), cfg.ASR.Language, 1)
		if err != nil {
			backendLog.Warnf("asr tier %s failed to load: %v", tier, err)
			warnings = append(warnings, "asr tier "+string(tier)+" failed to load: "+err.Error())
			continue
		}
		asrBackends[tier] = backend
	}
	backends.ASR = asrBackends

	if vadPath, err := mgr.Resolve(ctx, models.RoleVAD, models.Standard, nil); err != nil {
		backendLog.Warnf("vad model unavailable, falling back to energy scorer: %v", err)
		warnings = append(warnings, "vad model unavailable: "+err.Error())
	} else {
		scorer, err := vad.NewSherpaScorer(vad.SherpaConfig{
			ModelPath:  vadPath,
			Threshold:  float32(cfg.VAD.Threshold),
			NumThreads: 1,
			Provider:   accelProvider,
		})
		if err != nil {
			backendLog.Warnf("vad model failed to load, falling back to energy scorer: %v", err)
			warnings = append(warnings, "vad model failed to load: "+err.Error())
		} else {
			backends.VADScorer = scorer
		}
	}

	embedBackend, err := resolveEmbedBackend(ctx, mgr, cfg.Speakers.EmbeddingDimension)
	if err != nil {
		return backends, append(warnings, "embedder model unavailable: "+err.Error())
	}
	backends.Embed = embedBackend

	return backends, warnings
}

// embedTierPreference orders embedder tiers best-quality first; melCfg is
// non-nil for tiers whose resolved artifact needs an externally computed
// log-mel front-end rather than accepting raw waveform samples, per
// OnnxBackend's doc comment.
var embedTierPreference = []struct {
	tier   models.Tier
	melCfg *embed.MelConfig
}{
	{models.HighAccuracy, melConfigPtr(embed.WeSpeakerMelConfig())},
	{models.Standard, nil},
	{models.Turbo, nil},
}

func melConfigPtr(cfg embed.MelConfig) *embed.MelConfig { return &cfg }

// resolveEmbedBackend tries each embedder tier in quality order, returning
// the first one whose model artifact the manager resolves (fetching it if
// needed) and that loads.
func resolveEmbedBackend(ctx context.Context, mgr *models.Manager, dimension int) (*embed.OnnxBackend, error) {
	var lastErr error
	for _, pref := range embedTierPreference {
		path, err := mgr.Resolve(ctx, models.RoleEmbedder, pref.tier, nil)
		if err != nil {
			lastErr = err
			continue
		}
		return embed.NewOnnxBackend(path, dimension, pref.melCfg)
	}
	return nil, lastErr
}

// singleFileParaformer treats a resolved model path as a single-file
// paraformer model, with a tokens.txt sibling in the same directory — the
// model shape §4.K's one-artifact-per-(role,tier) contract can express
// without the transducer's three-file encoder/decoder/joiner split.
func singleFileParaformer(modelPath string) asr.SherpaModelPaths {
	paths := asr.SherpaModelPaths{ModelType: "paraformer"}
	paths.Paraformer.Model = modelPath
	paths.Tokens = filepath.Join(filepath.Dir(modelPath), "tokens.txt")
	return paths
}

func hardwareProvider(accel config.Accelerator) string {
	switch accel {
	case config.AccelCUDA:
		return "cuda"
	case config.AccelMetal:
		return "coreml"
	case config.AccelCPU:
		return "cpu"
	default:
		return ""
	}
}
