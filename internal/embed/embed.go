// Package embed implements §4.E: windowed speaker-embedding extraction from
// SpeechSegments, hop-overlapped inside a segment, with an LRU fingerprint
// cache keyed by exact sample range.
package embed

import (
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/ringbuffer"
)

// Embedding is a fixed-dimension, unit-norm speaker embedding, per §3.
type Embedding struct {
	Vector     []float32
	Confidence float32
	Quality    float32
	StartMs    int64
	EndMs      int64
}

// Backend is the model capability set, per §9's "small capability set"
// guidance: load once, infer per window. It has no cancel operation; an
// Infer call that has started runs to completion.
type Backend interface {
	Dimension() int
	Infer(window []float32) ([]float32, error)
}

const (
	minConfidence  = 0.3
	defaultWindow  = 2 * 16000 // 2s at 16kHz
	hopRatio       = 0.5
)

// Config controls window sizing; SampleRate must be the ring buffer's rate.
type Config struct {
	SampleRate     int
	WindowSamples  int
	CacheCapacity  int
}

func DefaultConfig() Config {
	return Config{SampleRate: ringbuffer.SampleRate, WindowSamples: defaultWindow, CacheCapacity: 4096}
}

// Extractor produces Embeddings for a SpeechSegment by pulling
// hop-overlapped windows from the ring buffer via Range.
type Extractor struct {
	cfg     Config
	backend Backend
	cache   *fingerprintCache
	group   singleflight.Group
}

func New(cfg Config, backend Backend) *Extractor {
	return &Extractor{cfg: cfg, backend: backend, cache: newFingerprintCache(cfg.CacheCapacity)}
}

// ExtractSegment produces one or more Embeddings covering [startSample,
// endSample) in the ring buffer's sample coordinate space, hop-overlapping
// by 50% within the segment. Windows scoring below minConfidence are
// dropped, matching §4.E.
func (e *Extractor) ExtractSegment(bus *ringbuffer.Bus, startSample, endSample int64) ([]Embedding, error) {
	if endSample <= startSample {
		return nil, errs.New(errs.InvalidRange, "embed: segment end %d <= start %d", endSample, startSample)
	}

	window := int64(e.cfg.WindowSamples)
	hop := int64(float64(window) * hopRatio)
	if hop <= 0 {
		hop = window
	}

	var out []Embedding
	for ws := startSample; ws+window <= endSample || ws == startSample; ws += hop {
		we := ws + window
		if we > endSample {
			we = endSample
		}
		if we-ws < window/4 {
			break
		}

		emb, err := e.extractWindow(bus, ws, we)
		if err != nil {
			return out, err
		}
		if emb != nil {
			out = append(out, *emb)
		}
		if we == endSample {
			break
		}
	}
	return out, nil
}

func (e *Extractor) extractWindow(bus *ringbuffer.Bus, startSample, endSample int64) (*Embedding, error) {
	fp := fingerprint(startSample, endSample)
	if cached, ok := e.cache.get(fp); ok {
		return &cached, nil
	}

	// Concurrent requests for the same exact window (e.g. the boundary
	// detector re-extracting an anchor window while a hop-overlapped
	// sibling request is in flight) collapse onto one inference call.
	result, err, _ := e.group.Do(fp, func() (any, error) {
		return e.computeWindow(bus, startSample, endSample)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	emb := result.(Embedding)
	return &emb, nil
}

func (e *Extractor) computeWindow(bus *ringbuffer.Bus, startSample, endSample int64) (any, error) {
	samples, err := bus.Range(startSample, endSample)
	if err != nil {
		return nil, err
	}
	if int64(len(samples)) < (endSample-startSample)/2 {
		return nil, nil
	}

	confidence := windowConfidence(samples)
	if confidence < minConfidence {
		return nil, nil
	}

	vector, err := e.backend.Infer(samples)
	if err != nil {
		return nil, errs.Wrap(errs.InternalDecoder, err, "embed: inference failed")
	}
	if len(vector) != e.backend.Dimension() {
		return nil, errs.New(errs.DimensionMismatch, "embed: backend returned dim %d, want %d", len(vector), e.backend.Dimension())
	}

	normalized := l2Normalize(vector)
	emb := Embedding{
		Vector:     normalized,
		Confidence: confidence,
		Quality:    confidence,
		StartMs:    sampleToMs(startSample, e.cfg.SampleRate),
		EndMs:      sampleToMs(endSample, e.cfg.SampleRate),
	}
	e.cache.put(fingerprint(startSample, endSample), emb)
	return emb, nil
}

// windowConfidence derives a [0,1] quality score from RMS energy and
// clipping, gating windows that are too quiet or too distorted to trust.
func windowConfidence(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	clipped := 0
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
		if s >= 0.999 || s <= -0.999 {
			clipped++
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	clipRatio := float64(clipped) / float64(len(samples))

	energyScore := rms * 10
	if energyScore > 1 {
		energyScore = 1
	}
	confidence := energyScore * (1 - clipRatio)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return float32(confidence)
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-9 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// CosineSimilarity computes the dot product of two unit-norm embeddings.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}

func sampleToMs(sample int64, sampleRate int) int64 {
	if sampleRate == 0 {
		return 0
	}
	return sample * 1000 / int64(sampleRate)
}
