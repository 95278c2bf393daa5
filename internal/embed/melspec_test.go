package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMelFilterbankShape(t *testing.T) {
	filters := melFilterbank(512, 80, 16000)
	require.Len(t, filters, 80)

	expectedBins := 512/2 + 1
	for i, f := range filters {
		assert.Lenf(t, f, expectedBins, "filter %d", i)
	}
}

func TestMelFilterbankWeightsAreNonNegativeAndBounded(t *testing.T) {
	filters := melFilterbank(512, 80, 16000)
	for _, f := range filters {
		for _, w := range f {
			assert.GreaterOrEqual(t, w, 0.0)
			assert.LessOrEqual(t, w, 1.0)
		}
	}
}

func TestHannWindowEndpointsNearZero(t *testing.T) {
	w := hannWindow(400)
	assert.InDelta(t, 0, w[0], 1e-9)
	assert.Greater(t, w[200], 0.9)
}

func TestMelProcessorComputeShape(t *testing.T) {
	cfg := WeSpeakerMelConfig()
	p := newMelProcessor(cfg)

	samples := make([]float32, cfg.SampleRate*2)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.3
		} else {
			samples[i] = -0.3
		}
	}

	melSpec, numFrames := p.compute(samples)
	require.Equal(t, numFrames, len(melSpec))
	require.Greater(t, numFrames, 0)
	for _, frame := range melSpec {
		assert.Len(t, frame, cfg.NMels)
	}
}

func TestMelProcessorComputeHandlesShorterThanWindow(t *testing.T) {
	cfg := WeSpeakerMelConfig()
	p := newMelProcessor(cfg)

	melSpec, numFrames := p.compute(make([]float32, 10))
	assert.Equal(t, 1, numFrames)
	assert.Len(t, melSpec, 1)
}
