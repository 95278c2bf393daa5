package testsupport

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceloom/meetscribe/internal/audio"
)

func TestWriteWAVRoundTripsThroughLoadWAV(t *testing.T) {
	samples, _ := Generate(Scenario{
		SampleRate: 16000, DurationS: 1, SpeakerCount: 1,
		TurnSeconds: 1, SNRdB: math.Inf(1), Seed: 11,
	})

	path := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, WriteWAV(path, samples, 16000))

	frame, err := audio.LoadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, frame.SampleRate)
	assert.Equal(t, 1, frame.Channels)
	assert.Equal(t, len(samples), len(frame.Samples))

	for i := range samples {
		assert.InDelta(t, samples[i], frame.Samples[i], 1.0/32767*2)
	}
}
