package vad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func TestNewRejectsNonSupportedSampleRate(t *testing.T) {
	_, err := New(DefaultConfig(), 44100, nil)
	require.Error(t, err)
}

func TestNewRejectsInvalidThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 1.5
	_, err := New(cfg, 16000, nil)
	require.Error(t, err)
}

func TestProcessRejectsEmptyFrame(t *testing.T) {
	d, err := New(DefaultConfig(), 16000, nil)
	require.NoError(t, err)
	_, err = d.Process(nil, 0)
	require.Error(t, err)
}

func TestProcessRejectsHeavilyClippedFrame(t *testing.T) {
	d, err := New(DefaultConfig(), 16000, nil)
	require.NoError(t, err)
	clipped := make([]float32, 1000)
	for i := range clipped {
		clipped[i] = 1.5
	}
	_, err = d.Process(clipped, 0)
	require.Error(t, err)
}

// constantScorer always reports the same probability, letting tests drive
// the hysteresis state machine deterministically.
type constantScorer struct{ p float32 }

func (c constantScorer) Score([]float32) float32 { return c.p }

func TestSegmentEntersAfterEnterFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptiveThreshold = false
	cfg.EnterFrames = 3
	cfg.LeaveFrames = 3
	cfg.MinSpeechMs = 20
	cfg.FrameMs = 20
	d, err := New(cfg, 16000, constantScorer{p: 0.9})
	require.NoError(t, err)

	samples := tone(16000*2, 0.2) // 2s @16kHz, well above clipping
	segs, err := d.Process(samples, 0)
	require.NoError(t, err)
	// Still in-speech at end of this block; no closed segment yet without
	// a following silence run.
	require.Empty(t, segs)

	closing := constantScorer{p: 0.1}
	d.scorer = closing
	segs, err = d.Process(tone(16000, 0.01), 2000)
	require.NoError(t, err)
	require.NotEmpty(t, segs)
	require.Greater(t, segs[0].EndMs, segs[0].StartMs)
}

func TestContinuousSpeechForceCutsAtMaxSpeechMs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptiveThreshold = false
	cfg.EnterFrames = 3
	cfg.LeaveFrames = 3
	cfg.MinSpeechMs = 20
	cfg.MaxSpeechMs = 1000
	cfg.FrameMs = 20
	d, err := New(cfg, 16000, constantScorer{p: 0.9})
	require.NoError(t, err)

	// 3s of uninterrupted speech, well past MaxSpeechMs, with no trailing
	// silence to trigger the ordinary belowCount close.
	segs, err := d.Process(tone(16000*3, 0.2), 0)
	require.NoError(t, err)
	require.NotEmpty(t, segs, "a continuous utterance must still force-close at MaxSpeechMs")
	for _, seg := range segs {
		require.LessOrEqual(t, seg.DurationMs(), cfg.MaxSpeechMs)
	}
}

func TestSplitLongSplitsOversizedSegment(t *testing.T) {
	seg := SpeechSegment{StartMs: 0, EndMs: 40000, Confidence: 0.8}
	parts := SplitLong(seg, 2000, 15000)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		require.GreaterOrEqual(t, p.DurationMs(), int64(0))
	}
	require.Equal(t, seg.StartMs, parts[0].StartMs)
	require.Equal(t, seg.EndMs, parts[len(parts)-1].EndMs)
}

func TestSplitLongNoopWhenWithinBounds(t *testing.T) {
	seg := SpeechSegment{StartMs: 0, EndMs: 3000}
	parts := SplitLong(seg, 2000, 15000)
	require.Equal(t, []SpeechSegment{seg}, parts)
}

func TestAdaptThresholdClampsAtPoint9(t *testing.T) {
	d, err := New(DefaultConfig(), 16000, nil)
	require.NoError(t, err)
	d.adaptThreshold(5) // very noisy: base 0.5 + 0.3 = 0.8, still under clamp
	require.InDelta(t, 0.8, d.threshold, 1e-6)

	cfg := DefaultConfig()
	cfg.Threshold = 0.8
	d2, err := New(cfg, 16000, nil)
	require.NoError(t, err)
	d2.adaptThreshold(5) // 0.8 + 0.3 = 1.1, clamped to 0.9
	require.InDelta(t, 0.9, d2.threshold, 1e-6)
}

func TestEnergyScorerDistinguishesLoudFromSilent(t *testing.T) {
	var s EnergyScorer
	loud := s.Score(tone(320, 0.5))
	quiet := s.Score(make([]float32, 320))
	require.Greater(t, loud, quiet)
}
