package embed

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MelConfig configures the log-mel front-end some embedding models expect
// as input instead of raw waveform samples, per the teacher's WeSpeaker
// integration (speaker_encoder.go: "WeSpeaker использует 80 mels").
type MelConfig struct {
	SampleRate int
	NMels      int
	HopLength  int // usually SampleRate/100 (10ms)
	WinLength  int // usually SampleRate/40 (25ms)
	NFFT       int
}

// WeSpeakerMelConfig is the teacher's DefaultSpeakerEncoderConfig mel
// settings, matched to the wespeaker_en_voxceleb_resnet293_LM.onnx artifact
// the HighAccuracy embedder tier resolves.
func WeSpeakerMelConfig() MelConfig {
	return MelConfig{SampleRate: 16000, NMels: 80, HopLength: 160, WinLength: 400, NFFT: 512}
}

// melProcessor computes a log-mel spectrogram with gonum's FFT, the same
// library and algorithm the teacher's mel_spectrogram.go used for both the
// GigaAM ASR front-end and the WeSpeaker speaker encoder.
type melProcessor struct {
	cfg        MelConfig
	melFilters [][]float64
	window     []float64
	fft        *fourier.FFT
}

func newMelProcessor(cfg MelConfig) *melProcessor {
	return &melProcessor{
		cfg:        cfg,
		melFilters: melFilterbank(cfg.NFFT, cfg.NMels, cfg.SampleRate),
		window:     hannWindow(cfg.WinLength),
		fft:        fourier.NewFFT(cfg.NFFT),
	}
}

// compute returns the log-mel spectrogram as [numFrames][NMels], left-aligned
// (no center padding), matching the teacher's non-centered GigaAM mode.
func (p *melProcessor) compute(samples []float32) ([][]float32, int) {
	var numFrames int
	if len(samples) >= p.cfg.WinLength {
		numFrames = (len(samples)-p.cfg.WinLength)/p.cfg.HopLength + 1
	} else {
		numFrames = 1
	}

	melSpec := make([][]float32, numFrames)
	for frame := 0; frame < numFrames; frame++ {
		frameStart := frame * p.cfg.HopLength

		frameData := make([]float64, p.cfg.NFFT)
		for i := 0; i < p.cfg.WinLength; i++ {
			idx := frameStart + i
			if idx >= 0 && idx < len(samples) {
				frameData[i] = float64(samples[idx]) * p.window[i]
			}
		}

		coeffs := p.fft.Coefficients(nil, frameData)

		powerSpec := make([]float64, p.cfg.NFFT/2+1)
		for i := 0; i <= p.cfg.NFFT/2; i++ {
			re, im := real(coeffs[i]), imag(coeffs[i])
			powerSpec[i] = re*re + im*im
		}

		melSpec[frame] = make([]float32, p.cfg.NMels)
		for m := 0; m < p.cfg.NMels; m++ {
			var sum float64
			for k, pw := range powerSpec {
				sum += pw * p.melFilters[m][k]
			}
			if sum < 1e-9 {
				sum = 1e-9
			}
			melSpec[frame][m] = float32(math.Log(sum))
		}
	}
	return melSpec, numFrames
}

// melFilterbank builds a torchaudio/librosa-compatible triangular
// filterbank in Hz space (HTK mel scale).
func melFilterbank(nFFT, nMels, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 { return 2595.0 * math.Log10(1.0+hz/700.0) }
	melToHz := func(mel float64) float64 { return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0) }

	numBins := nFFT/2 + 1
	fMax := float64(sampleRate) / 2.0

	allFreqs := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		allFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	mMin, mMax := hzToMel(0), hzToMel(fMax)
	fPts := make([]float64, nMels+2)
	for i := range fPts {
		fPts[i] = melToHz(mMin + float64(i)*(mMax-mMin)/float64(nMels+1))
	}

	fDiff := make([]float64, nMels+1)
	for i := range fDiff {
		fDiff[i] = fPts[i+1] - fPts[i]
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		filters[m] = make([]float64, numBins)
		for k, freq := range allFreqs {
			lower := (freq - fPts[m]) / fDiff[m]
			upper := (fPts[m+2] - freq) / fDiff[m+1]
			val := math.Min(lower, upper)
			if val < 0 {
				val = 0
			}
			filters[m][k] = val
		}
	}
	return filters
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
