package vad

import (
	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// SherpaConfig configures the Silero VAD model bundled with sherpa-onnx,
// the same model family the teacher uses for diarization segmentation.
type SherpaConfig struct {
	ModelPath   string
	Threshold   float32
	NumThreads  int
	Provider    string // "cpu", "cuda", "coreml" — see hardwareProvider in cmd/scribed
}

// SherpaScorer adapts sherpa-onnx's native VAD (a binary speech/silence
// classifier) to the FrameScorer interface by reporting 1.0 for detected
// speech and 0.0 otherwise. It owns native resources and must be Closed.
type SherpaScorer struct {
	vad *sherpa.VoiceActivityDetector
}

// NewSherpaScorer loads the Silero VAD ONNX model through sherpa-onnx.
func NewSherpaScorer(cfg SherpaConfig) (*SherpaScorer, error) {
	if cfg.ModelPath == "" {
		return nil, errs.New(errs.ModelNotFound, "sherpa vad: model path is empty")
	}
	sileroConfig := sherpa.SileroVadModelConfig{
		Model:              cfg.ModelPath,
		Threshold:          cfg.Threshold,
		MinSilenceDuration: 0.1,
		MinSpeechDuration:  0.1,
		MaxSpeechDuration:  30,
		WindowSize:         512,
	}
	config := sherpa.VadModelConfig{
		SileroVad:  sileroConfig,
		SampleRate: 16000,
		NumThreads: cfg.NumThreads,
		Provider:   cfg.Provider,
	}
	vad := sherpa.NewVoiceActivityDetector(&config, 30)
	if vad == nil {
		return nil, errs.New(errs.ModelLoadFailed, "sherpa vad: failed to load model %s", cfg.ModelPath)
	}
	return &SherpaScorer{vad: vad}, nil
}

func (s *SherpaScorer) Score(window []float32) float32 {
	s.vad.AcceptWaveform(window)
	if s.vad.IsSpeechDetected() {
		return 1.0
	}
	return 0.0
}

// Close releases the native VAD model.
func (s *SherpaScorer) Close() {
	if s.vad != nil {
		sherpa.DeleteVoiceActivityDetector(s.vad)
		s.vad = nil
	}
}
