package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// LoadWAV reads a RIFF/WAVE file (integer PCM at 8/16/24/32 bits, mono or
// stereo, any of the §6 supported rates) and returns it as an AudioFrame in
// the internal float32 [-1,1] representation, ready for
// Conditioner.Condition. IEEE-float WAV data is not recognized as float: a
// 32-bit file is always decoded as integer PCM.
func LoadWAV(path string) (AudioFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioFrame{}, errs.Wrap(errs.AudioRejected, err, "open wav file %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return AudioFrame{}, errs.New(errs.AudioRejected, "%s is not a valid RIFF/WAVE file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return AudioFrame{}, errs.Wrap(errs.AudioRejected, err, "decode wav pcm: %s", path)
	}

	rate := int(dec.SampleRate)
	if !SupportedSampleRates[rate] {
		return AudioFrame{}, errs.New(errs.UnsupportedSampleRate, "wav sample rate %d Hz not supported", rate)
	}
	channels := int(dec.NumChans)
	if channels != 1 && channels != 2 {
		return AudioFrame{}, errs.New(errs.AudioRejected, "wav channel count %d not supported", channels)
	}

	samples, err := pcmBufferToFloat(buf, int(dec.BitDepth))
	if err != nil {
		return AudioFrame{}, err
	}

	frames := len(samples) / channels
	return AudioFrame{
		Samples:    samples,
		SampleRate: rate,
		Channels:   channels,
		CapturedAt: time.Now(),
		Source:     SourceFile,
		Duration:   time.Duration(frames) * time.Second / time.Duration(rate),
	}, nil
}

// pcmBufferToFloat normalizes a decoded PCM buffer to [-1,1] float32,
// honoring the exact per-format integer divisors from §6: 8-bit data is
// treated as unsigned, 16/24/32-bit data goes through IntToFloat. There is
// no float-format branch.
func pcmBufferToFloat(buf *audio.IntBuffer, bitDepth int) ([]float32, error) {
	if buf == nil {
		return nil, errs.New(errs.EmptyAudio, "wav file has no audio data")
	}
	data := buf.Data
	if len(data) == 0 {
		return nil, errs.New(errs.EmptyAudio, "wav file has no samples")
	}

	int32s := make([]int32, len(data))
	for i, v := range data {
		int32s[i] = int32(v)
	}

	switch bitDepth {
	case 8:
		out := make([]float32, len(int32s))
		for i, v := range int32s {
			out[i] = (float32(v) - 128) / 128
		}
		return out, nil
	case 16, 24, 32:
		return IntToFloat(int32s, bitDepth)
	default:
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
	}
}
