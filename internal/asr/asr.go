// Package asr implements §4.G: acoustic-model inference producing text plus
// word timestamps, across the Standard/HighAccuracy/Turbo tiers from §4.K.
package asr

import (
	"github.com/voiceloom/meetscribe/internal/errs"
)

// Tier selects which model artifact backs a transcription call. Tier choice
// changes latency/quality only, never the contract.
type Tier string

const (
	Standard    Tier = "Standard"
	HighAccuracy Tier = "HighAccuracy"
	Turbo       Tier = "Turbo"
)

// Word is one decoded token with monotone timestamps relative to the span
// that was transcribed.
type Word struct {
	StartMs    int64
	EndMs      int64
	Text       string
	Confidence float32
}

// Segment is one contiguous run of decoded text within a span.
type Segment struct {
	StartMs    int64
	EndMs      int64
	Text       string
	Words      []Word
	Confidence float32
}

// Options carries the optional decoding context from §4.G: a language hint
// and prior-segment text used to bias decoding continuity.
type Options struct {
	Language   string
	PriorText  string
	WordTimestamps bool
}

// Backend is one tier's model capability: decode a mono 16kHz span into
// ordered Segments. Implementations must keep word timestamps monotone and
// confined to [0, len(samples)/sampleRate*1000).
type Backend interface {
	Name() string
	Tier() Tier
	Decode(samples []float32, opts Options) ([]Segment, error)
	Close()
}

func validateSamples(samples []float32) error {
	if len(samples) == 0 {
		return errs.New(errs.EmptyAudio, "asr: empty span")
	}
	return nil
}

// clampWords drops or truncates words whose timestamps fall outside
// [0, spanMs) or are non-monotone, rather than propagating a decoder that
// violates §4.G's ordering contract.
func clampWords(words []Word, spanMs int64) []Word {
	out := make([]Word, 0, len(words))
	var lastEnd int64
	for _, w := range words {
		if w.StartMs < lastEnd {
			w.StartMs = lastEnd
		}
		if w.EndMs < w.StartMs {
			w.EndMs = w.StartMs
		}
		if w.EndMs > spanMs {
			w.EndMs = spanMs
		}
		if w.StartMs > spanMs {
			continue
		}
		out = append(out, w)
		lastEnd = w.EndMs
	}
	return out
}
