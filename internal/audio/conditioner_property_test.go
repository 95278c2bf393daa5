package audio

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// rates mirrors SupportedSampleRates as a slice so rapid can pick from it.
var rates = []int{16000, 22050, 32000, 44100, 48000}

// TestConditionAlwaysProducesInRangeSamples checks §8's quantified
// invariant for ConditionedFrame: regardless of the source sample rate,
// channel count, or input amplitude, Condition's output samples are always
// within [-1, 1]. ConditionedFrame carries no explicit sample_rate/channels
// fields because Condition always normalizes to 16 kHz mono by
// construction, so those two conjuncts hold by type; this property checks
// the one conjunct that depends on runtime values.
func TestConditionAlwaysProducesInRangeSamples(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rates[rapid.IntRange(0, len(rates)-1).Draw(t, "rateIdx")]
		channels := rapid.IntRange(1, 2).Draw(t, "channels")
		frameLen := rapid.IntRange(1, 50).Draw(t, "frames")
		samples := rapid.SliceOfN(rapid.Float32Range(-100, 100), frameLen*channels, frameLen*channels).Draw(t, "samples")

		f := AudioFrame{
			Samples:    samples,
			SampleRate: rate,
			Channels:   channels,
			CapturedAt: time.Unix(0, 0),
			Source:     SourceFile,
		}

		c := NewConditioner(Config{ResampleQuality: QualityFast})
		out, err := c.Condition(f)
		if err != nil {
			t.Fatalf("condition: %v", err)
		}
		for _, s := range out.Samples {
			if s > 1 || s < -1 {
				t.Fatalf("sample %v out of [-1,1] range", s)
			}
		}
	})
}
