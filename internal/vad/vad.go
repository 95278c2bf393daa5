// Package vad implements §4.B: frame-level speech probability, a
// hysteretic adaptive threshold, and assembly of speech probability into
// SpeechSegments.
package vad

import (
	"math"
	"sort"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// SpeechSegment is one continuous in-speech span, per §3's SpeechSegment
// type: end strictly after start, duration bounded by [min,max] speech
// duration.
type SpeechSegment struct {
	StartMs    int64
	EndMs      int64
	Confidence float32
}

// DurationMs returns end - start.
func (s SpeechSegment) DurationMs() int64 { return s.EndMs - s.StartMs }

// Config holds the VAD's tunables, all from §4.B and §6.
type Config struct {
	Threshold        float32 // base threshold in [0,1]
	AdaptiveThreshold bool
	EnterFrames      int // consecutive above-threshold frames to enter speech
	LeaveFrames      int // consecutive below-threshold frames to leave speech
	MinSpeechMs      int64
	MaxSpeechMs      int64
	ContextFrames    int // rolling context size in 512-sample units
	FrameMs          int // analysis window size, ms
}

// DefaultConfig matches the §6 documented defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         0.5,
		AdaptiveThreshold: true,
		EnterFrames:       3,
		LeaveFrames:       5,
		MinSpeechMs:       250,
		MaxSpeechMs:       30000,
		ContextFrames:     4,
		FrameMs:           20,
	}
}

func (c Config) validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return errs.New(errs.InvalidThreshold, "vad threshold %.3f out of [0,1]", c.Threshold)
	}
	if c.MinSpeechMs <= 0 || c.MaxSpeechMs <= 0 || c.MinSpeechMs > c.MaxSpeechMs {
		return errs.New(errs.InvalidRange, "vad min/max speech duration invalid: %d/%d", c.MinSpeechMs, c.MaxSpeechMs)
	}
	return nil
}

// FrameScorer produces a per-frame speech probability in [0,1]. The energy
// scorer below is the built-in fallback; a sherpa-onnx-backed scorer can be
// substituted without touching the segment-assembly state machine.
type FrameScorer interface {
	Score(frame []float32) float32
}

// Detector consumes 16 kHz mono samples frame-by-frame, maintains the
// rolling context and adaptive threshold, and assembles SpeechSegments.
type Detector struct {
	cfg     Config
	scorer  FrameScorer
	context []float32

	threshold        float32
	aboveCount       int
	belowCount       int
	inSpeech         bool
	segmentStartMs   int64
	segmentStartFull bool
	confidenceSum    float32
	confidenceCount  int

	sampleRate  int
	framesSeen  int64
}

// New builds a Detector. scorer may be nil to use the built-in energy+
// spectral-centroid scorer (the same shape the original project used
// before a neural backend was wired in).
func New(cfg Config, sampleRate int, scorer FrameScorer) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sampleRate != 16000 {
		return nil, errs.New(errs.UnsupportedSampleRate, "vad requires 16 kHz input, got %d", sampleRate)
	}
	if scorer == nil {
		scorer = &EnergyScorer{}
	}
	return &Detector{
		cfg:        cfg,
		scorer:     scorer,
		threshold:  cfg.Threshold,
		sampleRate: sampleRate,
	}, nil
}

// Process runs the VAD over one block of samples (typically one
// ConditionedFrame) and returns any SpeechSegments that closed within it.
// startMs is the absolute timeline position of samples[0].
func (d *Detector) Process(samples []float32, startMs int64) ([]SpeechSegment, error) {
	if len(samples) == 0 {
		return nil, errs.New(errs.EmptyAudio, "vad: empty frame")
	}
	clipped := 0
	for _, s := range samples {
		if s > 1 || s < -1 {
			clipped++
		}
	}
	if clipped*10 > len(samples) {
		return nil, errs.New(errs.ClippedAudio, "vad: %d/%d samples clipped", clipped, len(samples))
	}

	d.updateContext(samples)
	snr, _ := estimateSNR(samples)
	d.adaptThreshold(snr)

	frameSamples := d.sampleRate * d.cfg.FrameMs / 1000
	if frameSamples <= 0 {
		frameSamples = 320
	}

	var closed []SpeechSegment
	for i := 0; i < len(samples); i += frameSamples {
		end := i + frameSamples
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[i:end]
		frameStartMs := startMs + int64(i)*1000/int64(d.sampleRate)
		prob := d.scorer.Score(window)

		if seg, ok := d.stepFrame(prob, frameStartMs); ok {
			closed = append(closed, seg)
		}
		d.framesSeen++
	}
	return closed, nil
}

// stepFrame advances the enter/leave hysteresis state machine by one frame.
func (d *Detector) stepFrame(prob float32, frameStartMs int64) (SpeechSegment, bool) {
	isAbove := prob > d.threshold

	if isAbove {
		d.aboveCount++
		d.belowCount = 0
	} else {
		d.belowCount++
		d.aboveCount = 0
	}

	if !d.inSpeech && d.aboveCount >= d.cfg.EnterFrames {
		d.inSpeech = true
		d.segmentStartMs = frameStartMs - int64(d.cfg.EnterFrames-1)*int64(d.cfg.FrameMs)
		if d.segmentStartMs < 0 {
			d.segmentStartMs = 0
		}
		d.confidenceSum = 0
		d.confidenceCount = 0
	}

	if d.inSpeech {
		d.confidenceSum += prob
		d.confidenceCount++
	}

	if d.inSpeech && d.belowCount >= d.cfg.LeaveFrames {
		d.inSpeech = false
		endMs := frameStartMs - int64(d.cfg.LeaveFrames-1)*int64(d.cfg.FrameMs) + int64(d.cfg.FrameMs)
		seg := d.finalizeSegment(endMs)
		if seg != nil {
			return *seg, true
		}
	}

	// A continuous utterance never hits the belowCount branch above, so
	// force a cut at MaxSpeechMs and keep the speaker in speech — otherwise
	// §8's `(s.end-s.start)*1000 ≤ max_speech_duration_ms` invariant only
	// holds for utterances that are eventually followed by silence.
	if d.inSpeech && frameStartMs+int64(d.cfg.FrameMs)-d.segmentStartMs >= d.cfg.MaxSpeechMs {
		endMs := frameStartMs + int64(d.cfg.FrameMs)
		seg := d.finalizeSegment(endMs)
		d.segmentStartMs = endMs
		d.confidenceSum = 0
		d.confidenceCount = 0
		if seg != nil {
			return *seg, true
		}
	}
	return SpeechSegment{}, false
}

// finalizeSegment discards too-short segments and returns the rest as-is,
// with no length check; callers that want split sub-segments should use
// SplitLong on the returned segment.
func (d *Detector) finalizeSegment(endMs int64) *SpeechSegment {
	if endMs <= d.segmentStartMs {
		return nil
	}
	durationMs := endMs - d.segmentStartMs
	if durationMs < d.cfg.MinSpeechMs {
		return nil
	}
	var confidence float32
	if d.confidenceCount > 0 {
		confidence = d.confidenceSum / float32(d.confidenceCount)
	}
	seg := SpeechSegment{StartMs: d.segmentStartMs, EndMs: endMs, Confidence: confidence}
	return &seg
}

// Flush closes any in-progress segment at the given absolute end time,
// e.g. when the session is stopping mid-utterance.
func (d *Detector) Flush(endMs int64) *SpeechSegment {
	if !d.inSpeech {
		return nil
	}
	d.inSpeech = false
	return d.finalizeSegment(endMs)
}

// SplitLong breaks a segment exceeding maxSpeechMs into equal-length pieces
// that each still exceed minSpeechMs, per §4.B.
func SplitLong(seg SpeechSegment, minSpeechMs, maxSpeechMs int64) []SpeechSegment {
	duration := seg.DurationMs()
	if duration <= maxSpeechMs {
		return []SpeechSegment{seg}
	}
	numSplits := int(math.Ceil(float64(duration) / float64(maxSpeechMs)))
	splitDuration := duration / int64(numSplits)
	if splitDuration < minSpeechMs {
		numSplits = int(duration / minSpeechMs)
		if numSplits < 1 {
			numSplits = 1
		}
		splitDuration = duration / int64(numSplits)
	}

	out := make([]SpeechSegment, 0, numSplits)
	for i := 0; i < numSplits; i++ {
		start := seg.StartMs + int64(i)*splitDuration
		end := start + splitDuration
		if i == numSplits-1 || end > seg.EndMs {
			end = seg.EndMs
		}
		out = append(out, SpeechSegment{StartMs: start, EndMs: end, Confidence: seg.Confidence})
	}
	return out
}

// updateContext maintains the rolling context_frames*512-sample window.
func (d *Detector) updateContext(samples []float32) {
	d.context = append(d.context, samples...)
	max := d.cfg.ContextFrames * 512
	if max <= 0 {
		max = 2048
	}
	if len(d.context) > max {
		d.context = d.context[len(d.context)-max:]
	}
}

// adaptThreshold applies §4.B's piecewise SNR-based adjustment, clamped at
// 0.9.
func (d *Detector) adaptThreshold(snr float32) {
	if !d.cfg.AdaptiveThreshold {
		d.threshold = d.cfg.Threshold
		return
	}
	var adaptation float32
	switch {
	case snr < 10:
		adaptation = 0.30
	case snr < 20:
		adaptation = 0.20
	case snr < 30:
		adaptation = 0.10
	default:
		adaptation = 0.0
	}
	t := d.cfg.Threshold + adaptation
	if t > 0.9 {
		t = 0.9
	}
	d.threshold = t
}

// estimateSNR computes short-term signal energy against the 25th-percentile
// magnitude as a noise-floor estimate, per §4.B.
func estimateSNR(samples []float32) (float32, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var signalPower float64
	mags := make([]float64, len(samples))
	for i, s := range samples {
		signalPower += float64(s) * float64(s)
		mags[i] = math.Abs(float64(s))
	}
	signalPower /= float64(len(samples))
	sort.Float64s(mags)
	noiseFloor := mags[len(mags)/4]
	if noiseFloor <= 0 {
		return 99, false
	}
	snr := 10 * math.Log10(signalPower/(noiseFloor*noiseFloor))
	return float32(snr), true
}
