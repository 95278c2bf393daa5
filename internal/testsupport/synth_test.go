package testsupport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateProducesRequestedDuration(t *testing.T) {
	samples, _ := Generate(Scenario{
		SampleRate: 16000, DurationS: 2, SpeakerCount: 2,
		TurnSeconds: 0.5, SNRdB: math.Inf(1), Seed: 1,
	})
	assert.Equal(t, 32000, len(samples))
}

func TestGenerateCoversFullDurationWithSegments(t *testing.T) {
	_, segments := Generate(Scenario{
		SampleRate: 16000, DurationS: 5, SpeakerCount: 2,
		TurnSeconds: 1, SNRdB: math.Inf(1), Seed: 7,
	})
	assert.NotEmpty(t, segments)
	assert.Equal(t, int64(0), segments[0].StartMs)
	last := segments[len(segments)-1]
	assert.Equal(t, int64(5000), last.EndMs)
}

func TestGenerateAlternatesSpeakers(t *testing.T) {
	_, segments := Generate(Scenario{
		SampleRate: 16000, DurationS: 6, SpeakerCount: 2,
		TurnSeconds: 1, SNRdB: math.Inf(1), Seed: 3,
	})
	seen := map[string]bool{}
	for _, s := range segments {
		seen[s.SpeakerID] = true
	}
	assert.Len(t, seen, 2)
}

func TestGenerateIsDeterministicForSameSeed(t *testing.T) {
	scenario := Scenario{SampleRate: 16000, DurationS: 2, SpeakerCount: 1, TurnSeconds: 1, SNRdB: math.Inf(1), Seed: 42}
	a, _ := Generate(scenario)
	b, _ := Generate(scenario)
	assert.Equal(t, a, b)
}

func TestGenerateStaysWithinClipRangeUnderNoise(t *testing.T) {
	samples, _ := Generate(Scenario{
		SampleRate: 16000, DurationS: 1, SpeakerCount: 1,
		TurnSeconds: 1, SNRdB: -20, Seed: 9,
	})
	for _, s := range samples {
		assert.GreaterOrEqual(t, s, float32(-1))
		assert.LessOrEqual(t, s, float32(1))
	}
}
