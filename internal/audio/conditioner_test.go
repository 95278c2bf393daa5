package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sineWave synthesizes n samples of a pure tone at freqHz, sampled at
// rateHz, amplitude 0.5.
func sineWave(freqHz float64, rateHz, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freqHz*float64(i)/float64(rateHz)))
	}
	return out
}

// estimateFreq counts zero crossings to recover the dominant frequency of a
// near-pure tone.
func estimateFreq(samples []float32, rateHz int) float64 {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			crossings++
		}
	}
	seconds := float64(len(samples)) / float64(rateHz)
	return float64(crossings) / 2 / seconds
}

func TestConditionResamples48kTo16kSinePreservesFrequency(t *testing.T) {
	const srcRate = 48000
	const freq = 440.0
	samples := sineWave(freq, srcRate, srcRate*2)

	c := NewConditioner(Config{ResampleQuality: QualityHigh})
	out, err := c.Condition(AudioFrame{
		Samples:    samples,
		SampleRate: srcRate,
		Channels:   1,
		CapturedAt: time.Now(),
		Source:     SourceFile,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Samples)

	got := estimateFreq(out.Samples, TargetSampleRate)
	require.InDelta(t, freq, got, 2.0)
}

func TestConditionRejectsEmptyFrame(t *testing.T) {
	c := NewConditioner(Config{})
	_, err := c.Condition(AudioFrame{SampleRate: 16000, Channels: 1})
	require.Error(t, err)
}

func TestConditionDeinterleavesStereo(t *testing.T) {
	c := NewConditioner(Config{})
	frame := AudioFrame{
		Samples:    []float32{1, -1, 1, -1},
		SampleRate: TargetSampleRate,
		Channels:   2,
		CapturedAt: time.Now(),
	}
	out, err := c.Condition(frame)
	require.NoError(t, err)
	for _, s := range out.Samples {
		require.InDelta(t, 0.0, s, 1e-6)
	}
}

func TestConditionAssignsMonotonicSampleIndex(t *testing.T) {
	c := NewConditioner(Config{})
	frame := AudioFrame{
		Samples:    sineWave(220, TargetSampleRate, 100),
		SampleRate: TargetSampleRate,
		Channels:   1,
		CapturedAt: time.Now(),
	}
	first, err := c.Condition(frame)
	require.NoError(t, err)
	second, err := c.Condition(frame)
	require.NoError(t, err)
	require.Equal(t, int64(0), first.SampleIndex)
	require.Equal(t, int64(len(first.Samples)), second.SampleIndex)
}

func TestNormalizeRMSReachesTargetLevel(t *testing.T) {
	quiet := sineWave(300, TargetSampleRate, TargetSampleRate)
	for i := range quiet {
		quiet[i] *= 0.01
	}
	out := normalizeRMS(quiet, targetDBFS)

	var sumSq float64
	for _, s := range out {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(out)))
	gotDBFS := 20 * math.Log10(rms)
	require.InDelta(t, targetDBFS, gotDBFS, 0.5)
}

func TestIntToFloatKnownBoundaries(t *testing.T) {
	out, err := IntToFloat([]int32{32767, -32768}, 16)
	require.NoError(t, err)
	require.InDelta(t, 1.0, out[0], 1e-4)
	require.InDelta(t, -1.0, out[1], 1e-4)

	_, err = IntToFloat([]int32{1}, 12)
	require.Error(t, err)
}
