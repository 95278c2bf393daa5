package config

// ScribeConfig is the full set of pipeline tunables recognized by the
// daemon, per §6's configuration-keys list. It is loaded once at session
// construction time from YAML; nothing in the pipeline re-reads it mid
// session.
type ScribeConfig struct {
	Speakers  SpeakersConfig  `yaml:"speakers"`
	VAD       VADConfig       `yaml:"vad"`
	Boundary  BoundaryConfig  `yaml:"boundary"`
	ASR       ASRConfig       `yaml:"asr"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Streaming StreamingConfig `yaml:"streaming"`
}

// SpeakersConfig covers clustering and segmentation tunables.
type SpeakersConfig struct {
	MaxSpeakers          int     `yaml:"max_speakers"`
	MinSpeakers          int     `yaml:"min_speakers"`
	EmbeddingDimension   int     `yaml:"embedding_dimension"`
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	MinSegmentDurationS  float64 `yaml:"min_segment_duration"`
	ChangeDetectionThresh float64 `yaml:"speaker_change_detection_threshold"`

	// ClusteringThreshold is a deprecated alias for SimilarityThreshold; see
	// DESIGN.md's Open Questions entry. Read once at load time and discarded.
	ClusteringThreshold float64 `yaml:"clustering_threshold"`
}

// VADConfig tunes the voice-activity detector.
type VADConfig struct {
	Threshold           float64 `yaml:"threshold"`
	MinSpeechDurationMs int64   `yaml:"min_speech_duration_ms"`
	MaxSpeechDurationMs int64   `yaml:"max_speech_duration_ms"`
	AdaptiveThreshold   bool    `yaml:"adaptive_threshold"`
}

// BoundaryConfig tunes the boundary detector's flush timing.
type BoundaryConfig struct {
	SoftMs      int64 `yaml:"soft_ms"`
	HardMs      int64 `yaml:"hard_ms"`
	MaxBufferMs int64 `yaml:"max_buffer_ms"`
}

// ASRTier selects which sherpa-onnx model tier decodes a span.
type ASRTier string

const (
	ASRStandard     ASRTier = "Standard"
	ASRHighAccuracy ASRTier = "HighAccuracy"
	ASRTurbo        ASRTier = "Turbo"
)

// IsValid reports whether t is one of the recognized ASR tiers.
func (t ASRTier) IsValid() bool {
	switch t {
	case ASRStandard, ASRHighAccuracy, ASRTurbo:
		return true
	default:
		return false
	}
}

// ASRConfig tunes the ASR engine.
type ASRConfig struct {
	Tier                 ASRTier `yaml:"tier"`
	Language             string  `yaml:"language"`
	EnableWordTimestamps bool    `yaml:"enable_word_timestamps"`
}

// Accelerator selects the compute backend used by every model role.
type Accelerator string

const (
	AccelAuto  Accelerator = "Auto"
	AccelCPU   Accelerator = "CPU"
	AccelMetal Accelerator = "Metal"
	AccelCUDA  Accelerator = "CUDA"
)

// IsValid reports whether a is one of the recognized accelerators.
func (a Accelerator) IsValid() bool {
	switch a {
	case AccelAuto, AccelCPU, AccelMetal, AccelCUDA:
		return true
	default:
		return false
	}
}

// HardwareConfig bounds resource usage across all model backends.
type HardwareConfig struct {
	Acceleration Accelerator `yaml:"hardware_acceleration"`
	MaxMemoryMB  int64       `yaml:"max_memory_mb"`
}

// StreamingConfig toggles the live-microphone path vs. whole-file batch
// processing.
type StreamingConfig struct {
	Enabled bool `yaml:"streaming_mode"`
}

// Default returns a ScribeConfig populated with the same defaults the
// pipeline stages use internally, so an empty or partial YAML file still
// produces a runnable configuration.
func Default() *ScribeConfig {
	return &ScribeConfig{
		Speakers: SpeakersConfig{
			MaxSpeakers:           10,
			MinSpeakers:           1,
			EmbeddingDimension:    256,
			SimilarityThreshold:   0.75,
			MinSegmentDurationS:   0.5,
			ChangeDetectionThresh: 0.6,
		},
		VAD: VADConfig{
			Threshold:           0.5,
			MinSpeechDurationMs: 250,
			MaxSpeechDurationMs: 30000,
			AdaptiveThreshold:   false,
		},
		Boundary: BoundaryConfig{
			SoftMs:      400,
			HardMs:      800,
			MaxBufferMs: 15000,
		},
		ASR: ASRConfig{
			Tier:                 ASRStandard,
			Language:             "en",
			EnableWordTimestamps: true,
		},
		Hardware: HardwareConfig{
			Acceleration: AccelAuto,
			MaxMemoryMB:  2048,
		},
		Streaming: StreamingConfig{Enabled: true},
	}
}
