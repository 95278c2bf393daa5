// Package audio implements §4.A: device enumeration, capture, conditioning
// (resample/normalize/high-pass) to the pipeline's internal 16 kHz mono
// float32 form, and WAV file loading for tests and batch input.
package audio

import (
	"time"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// SourceTag identifies where an AudioFrame originated.
type SourceTag string

const (
	SourceMicrophone SourceTag = "microphone"
	SourceSystem     SourceTag = "system"
	SourceFile       SourceTag = "file"
)

// SupportedSampleRates is the minimum rate set §6 requires capture and file
// input to accept.
var SupportedSampleRates = map[int]bool{
	16000: true,
	22050: true,
	32000: true,
	44100: true,
	48000: true,
}

// AudioFrame is an immutable block of PCM float samples in [-1,1].
type AudioFrame struct {
	Samples     []float32
	SampleRate  int
	Channels    int
	CapturedAt  time.Time
	Source      SourceTag
	Duration    time.Duration
}

// Validate enforces the invariants from §3: non-empty, samples divide
// evenly by channel count, and a supported sample rate.
func (f AudioFrame) Validate() error {
	if len(f.Samples) == 0 {
		return errs.New(errs.EmptyAudio, "audio frame has no samples")
	}
	if f.Channels <= 0 || len(f.Samples)%f.Channels != 0 {
		return errs.New(errs.AudioRejected, "samples length %d not divisible by channel count %d", len(f.Samples), f.Channels)
	}
	if !SupportedSampleRates[f.SampleRate] {
		return errs.New(errs.UnsupportedSampleRate, "sample rate %d Hz is not supported", f.SampleRate)
	}
	return nil
}

// ConditionedFrame is 16 kHz mono, amplitude-normalized, derived from one or
// more AudioFrames. SampleIndex is assigned monotonically at fan-out into
// the ring buffer and is the coordinate system the rest of the pipeline
// (boundary detector, ASR, embedder) addresses audio by.
type ConditionedFrame struct {
	Samples     []float32
	CapturedAt  time.Time
	SampleIndex int64
}

// Device describes one enumerated capture device.
type Device struct {
	ID                  string
	Name                string
	IsInput             bool
	IsDefault           bool
	SupportedSampleRates []int
	Channels            int
}

// Quality selects the resampler's window size, per §4.A.
type Quality int

const (
	QualityHigh Quality = iota
	QualityMedium
	QualityFast
)

func (q Quality) windowSize() int {
	switch q {
	case QualityHigh:
		return 64
	case QualityMedium:
		return 32
	default:
		return 16
	}
}

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "High"
	case QualityMedium:
		return "Medium"
	default:
		return "Fast"
	}
}

// ParseQuality recovers a Quality from its String() form, defaulting to
// QualityHigh for an unrecognized or empty value.
func ParseQuality(s string) Quality {
	switch s {
	case "Medium":
		return QualityMedium
	case "Fast":
		return QualityFast
	default:
		return QualityHigh
	}
}

// Config configures an opened capture Source.
type Config struct {
	DeviceID         string
	SampleRate       int
	Channels         int
	CaptureSystem    bool
	ResampleQuality  Quality
	NormalizeRMS     bool
	HighPassFilter   bool
}
