package audio

import (
	"math"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/obs"
)

var condLog = obs.New("audio")

// TargetSampleRate is the pipeline-wide internal rate (16 kHz).
const TargetSampleRate = 16000

// targetDBFS is the RMS normalization target.
const targetDBFS = -20.0

// Conditioner turns raw AudioFrames into 16 kHz mono ConditionedFrames:
// de-interleave to mono, windowed-sinc resample, optional RMS normalize,
// optional 80 Hz high-pass. Per-frame errors are logged and the frame
// dropped rather than propagated, per §7's propagation policy.
type Conditioner struct {
	cfg        Config
	nextIndex  int64
	hpState    highPassState
}

func NewConditioner(cfg Config) *Conditioner {
	return &Conditioner{cfg: cfg}
}

// Condition converts one AudioFrame into a ConditionedFrame. On a
// recoverable error the caller should drop the frame and continue; this
// function never panics on malformed input.
func (c *Conditioner) Condition(f AudioFrame) (ConditionedFrame, error) {
	if err := f.Validate(); err != nil {
		condLog.Debugf("dropping invalid frame: %v", err)
		return ConditionedFrame{}, err
	}

	mono := deinterleaveMono(f.Samples, f.Channels)

	resampled := mono
	if f.SampleRate != TargetSampleRate {
		resampled = resampleWindowedSinc(mono, f.SampleRate, TargetSampleRate, c.cfg.ResampleQuality.windowSize())
	}

	if c.cfg.NormalizeRMS {
		resampled = normalizeRMS(resampled, targetDBFS)
	}

	if c.cfg.HighPassFilter {
		resampled = c.hpState.apply(resampled)
	}

	for i, s := range resampled {
		if s > 1 {
			resampled[i] = 1
		} else if s < -1 {
			resampled[i] = -1
		}
	}

	out := ConditionedFrame{
		Samples:     resampled,
		CapturedAt:  f.CapturedAt,
		SampleIndex: c.nextIndex,
	}
	c.nextIndex += int64(len(resampled))
	return out, nil
}

// deinterleaveMono averages channels down to one, matching §4.A step 1.
func deinterleaveMono(samples []float32, channels int) []float32 {
	if channels == 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resampleWindowedSinc performs a windowed-sinc rate conversion. windowSize
// selects the quality/latency trade-off (64/32/16 taps per side, per
// original_source's resampler.rs quality modes).
func resampleWindowedSinc(in []float32, srcRate, dstRate, windowSize int) []float32 {
	if len(in) == 0 || srcRate == dstRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(in)) * ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		center := int(math.Floor(srcPos))
		var acc, weightSum float64
		for k := -windowSize; k <= windowSize; k++ {
			idx := center + k
			if idx < 0 || idx >= len(in) {
				continue
			}
			x := srcPos - float64(idx)
			w := sincWindowed(x, float64(windowSize))
			acc += float64(in[idx]) * w
			weightSum += w
		}
		if weightSum != 0 {
			out[i] = float32(acc / weightSum)
		}
	}
	return out
}

// sincWindowed is a Lanczos-windowed sinc kernel: sinc(x) * sinc(x/a).
func sincWindowed(x, a float64) float64 {
	if x == 0 {
		return 1
	}
	if math.Abs(x) >= a {
		return 0
	}
	piX := math.Pi * x
	return (math.Sin(piX) / piX) * (math.Sin(piX/a) / (piX / a))
}

// normalizeRMS scales samples so their RMS level matches targetDBFS.
func normalizeRMS(in []float32, targetDBFS float64) []float32 {
	if len(in) == 0 {
		return in
	}
	var sumSq float64
	for _, s := range in {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(in)))
	if rms < 1e-9 {
		return in
	}
	targetRMS := math.Pow(10, targetDBFS/20)
	gain := targetRMS / rms

	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(float64(s) * gain)
	}
	return out
}

// highPassState is a single-pole 80 Hz IIR high-pass filter, stateful across
// calls so frame boundaries don't introduce clicks.
type highPassState struct {
	initialized bool
	alpha       float64
	prevIn      float64
	prevOut     float64
}

const highPassCutoffHz = 80.0

func (h *highPassState) apply(in []float32) []float32 {
	if !h.initialized {
		rc := 1 / (2 * math.Pi * highPassCutoffHz)
		dt := 1.0 / float64(TargetSampleRate)
		h.alpha = rc / (rc + dt)
		h.initialized = true
	}

	out := make([]float32, len(in))
	for i, s := range in {
		x := float64(s)
		y := h.alpha * (h.prevOut + x - h.prevIn)
		out[i] = float32(y)
		h.prevIn = x
		h.prevOut = y
	}
	return out
}

// IntToFloat converts integer PCM samples to normalized float32 per §6:
// int16 divides by 32768, int24 by 2^23, int32 by 2^31-1.
func IntToFloat(samples []int32, bitDepth int) ([]float32, error) {
	var divisor float64
	switch bitDepth {
	case 16:
		divisor = 32768
	case 24:
		divisor = 1 << 23
	case 32:
		divisor = (1 << 31) - 1
	default:
		return nil, errs.New(errs.AudioRejected, "unsupported PCM bit depth: %d", bitDepth)
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(float64(s) / divisor)
	}
	return out, nil
}
