package asr

import (
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// SherpaModelPaths names the on-disk artifacts for one tier's offline
// recognizer, as resolved by the model manager (§4.K).
type SherpaModelPaths struct {
	Transducer struct {
		Encoder string
		Decoder string
		Joiner  string
	}
	Paraformer struct {
		Model string
	}
	Whisper struct {
		Encoder string
		Decoder string
	}
	Tokens    string
	ModelType string // "transducer" | "paraformer" | "whisper"
}

// SherpaBackend wraps sherpa-onnx-go's OfflineRecognizer, the same package
// the VAD's SherpaScorer uses for its voice-activity model.
type SherpaBackend struct {
	tier       Tier
	recognizer *sherpa.OfflineRecognizer
	numThreads int
}

// NewSherpaBackend builds a tiered ASR backend from a resolved model path
// set. numThreads defaults to 1 when <= 0.
func NewSherpaBackend(tier Tier, paths SherpaModelPaths, language string, numThreads int) (*SherpaBackend, error) {
	if numThreads <= 0 {
		numThreads = 1
	}

	config := &sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: 16000,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Tokens:     paths.Tokens,
			NumThreads: numThreads,
			Provider:   "cpu",
			Debug:      0,
		},
		DecodingMethod: "greedy_search",
	}

	switch paths.ModelType {
	case "paraformer":
		config.ModelConfig.Paraformer = sherpa.OfflineParaformerModelConfig{Model: paths.Paraformer.Model}
	case "whisper":
		config.ModelConfig.Whisper = sherpa.OfflineWhisperModelConfig{
			Encoder:  paths.Whisper.Encoder,
			Decoder:  paths.Whisper.Decoder,
			Language: language,
			Task:     "transcribe",
		}
	default:
		config.ModelConfig.Transducer = sherpa.OfflineTransducerModelConfig{
			Encoder: paths.Transducer.Encoder,
			Decoder: paths.Transducer.Decoder,
			Joiner:  paths.Transducer.Joiner,
		}
	}

	recognizer := sherpa.NewOfflineRecognizer(config)
	if recognizer == nil {
		return nil, errs.New(errs.ModelLoadFailed, "asr: sherpa-onnx failed to build offline recognizer for tier %s", tier)
	}

	return &SherpaBackend{tier: tier, recognizer: recognizer, numThreads: numThreads}, nil
}

func (b *SherpaBackend) Name() string { return "sherpa-onnx-" + string(b.tier) }

func (b *SherpaBackend) Tier() Tier { return b.tier }

// Decode runs one offline-recognizer pass over samples. sherpa-onnx-go's
// offline API has no word-level timestamps for every model family; when the
// recognizer result exposes tokens with timestamps we use them, otherwise
// the returned Segment carries the text with Words left empty.
func (b *SherpaBackend) Decode(samples []float32, opts Options) ([]Segment, error) {
	if b.recognizer == nil {
		return nil, errs.New(errs.ModelNotFound, "asr: sherpa backend closed")
	}

	stream := sherpa.NewOfflineStream(b.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(16000, samples)
	b.recognizer.Decode(stream)
	result := stream.GetResult()

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, nil
	}

	spanMs := int64(len(samples)) * 1000 / 16000
	words := sherpaWords(result, spanMs)

	return []Segment{{
		StartMs:    0,
		EndMs:      spanMs,
		Text:       text,
		Words:      words,
		Confidence: 1.0,
	}}, nil
}

// sherpaWords builds per-token words from the recognizer result's timestamp
// arrays when present, distributing the decode's single confidence value
// since sherpa-onnx's greedy_search output does not carry per-token scores.
func sherpaWords(result *sherpa.OfflineRecognizerResult, spanMs int64) []Word {
	if len(result.Tokens) == 0 || len(result.Timestamps) != len(result.Tokens) {
		return nil
	}
	words := make([]Word, 0, len(result.Tokens))
	for i, tok := range result.Tokens {
		startMs := int64(result.Timestamps[i] * 1000)
		endMs := spanMs
		if i+1 < len(result.Timestamps) {
			endMs = int64(result.Timestamps[i+1] * 1000)
		}
		words = append(words, Word{StartMs: startMs, EndMs: endMs, Text: tok, Confidence: 1.0})
	}
	return words
}

func (b *SherpaBackend) Close() {
	if b.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(b.recognizer)
		b.recognizer = nil
	}
}
