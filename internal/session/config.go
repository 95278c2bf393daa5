package session

import (
	"runtime"

	"github.com/voiceloom/meetscribe/internal/asr"
	"github.com/voiceloom/meetscribe/internal/boundary"
	"github.com/voiceloom/meetscribe/internal/cluster"
	"github.com/voiceloom/meetscribe/internal/dedup"
	"github.com/voiceloom/meetscribe/internal/embed"
	"github.com/voiceloom/meetscribe/internal/merge"
	"github.com/voiceloom/meetscribe/internal/profile"
	"github.com/voiceloom/meetscribe/internal/vad"
)

// Config gathers every sub-component's tunables plus the orchestrator's own,
// per §6's configuration-keys list. Each stage keeps its own defaults;
// DefaultConfig composes them rather than repeating values here.
type Config struct {
	SampleRate int

	VAD       vad.Config
	Boundary  boundary.Config
	Embed     embed.Config
	Cluster   cluster.Config
	Dedup     dedup.Config
	Merge     merge.Config
	Reconcile profile.ReconcileConfig

	ASRTier              asr.Tier
	ASRLanguage          string
	EnableWordTimestamps bool

	// WorkerPoolSize bounds the CPU-heavy stage pool; 0 means
	// max(1, NumCPU-1) per §5.
	WorkerPoolSize int

	// EventBufferSize bounds each subscriber's event channel; §4.L drops
	// the oldest non-critical event first once it is full.
	EventBufferSize int

	// MaxBufferMs is also boundary.Config.MaxBufferMs; kept for force-flush
	// scheduling at the orchestrator level when the boundary detector
	// itself has not fired.
	MaxBufferMs int64
}

func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		VAD:                  vad.DefaultConfig(),
		Boundary:             boundary.DefaultConfig(),
		Embed:                embed.DefaultConfig(),
		Cluster:              cluster.Config{SimilarityThreshold: 0.75, MinSpeakers: 1, MaxSpeakers: 10},
		Dedup:                dedup.DefaultConfig(),
		Merge:                merge.DefaultConfig(),
		Reconcile:            profile.ReconcileConfig{SimilarityThreshold: 0.8, MaxEmbeddingsPerProfile: 20},
		ASRTier:              asr.Standard,
		EnableWordTimestamps: true,
		WorkerPoolSize:       workerPoolSize(),
		EventBufferSize:      64,
		MaxBufferMs:          boundary.DefaultConfig().MaxBufferMs,
	}
}

func workerPoolSize() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}
