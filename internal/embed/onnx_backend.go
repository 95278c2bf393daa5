package embed

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// OnnxBackend wraps yalue/onnxruntime_go to host whichever embedding model
// the Model Manager resolves. Most sherpa-onnx speaker-embedding exports
// bake feature extraction into the graph and accept raw [1, numSamples]
// waveform input directly; melCfg is non-nil only for models exported
// without that, like the WeSpeaker ResNet293 artifact the HighAccuracy tier
// resolves, which needs an external log-mel front-end computed the way the
// teacher's mel_spectrogram.go + speaker_encoder.go did, as [1, numFrames,
// NMels].
type OnnxBackend struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	dimension  int
	inputName  string
	outputName string
	mel        *melProcessor
}

// NewOnnxBackend loads an ONNX embedding model from modelPath. dimension is
// the model's known output size (embedding_dimension from config). melCfg
// is nil for models that accept raw waveform samples directly.
func NewOnnxBackend(modelPath string, dimension int, melCfg *MelConfig) (*OnnxBackend, error) {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errs.Wrap(errs.ModelLoadFailed, err, "embed: read model io info")
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, errs.New(errs.ModelLoadFailed, "embed: model %s exposes no input/output", modelPath)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errs.Wrap(errs.ModelLoadFailed, err, "embed: create session options")
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputInfo[0].Name},
		[]string{outputInfo[0].Name},
		options,
	)
	if err != nil {
		return nil, errs.Wrap(errs.ModelLoadFailed, err, "embed: create onnx session")
	}

	backend := &OnnxBackend{
		session:    session,
		dimension:  dimension,
		inputName:  inputInfo[0].Name,
		outputName: outputInfo[0].Name,
	}
	if melCfg != nil {
		backend.mel = newMelProcessor(*melCfg)
	}
	return backend, nil
}

func (b *OnnxBackend) Dimension() int { return b.dimension }

func (b *OnnxBackend) Infer(window []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	input, err := b.buildInput(window)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := b.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("embed: inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errs.New(errs.InternalDecoder, "embed: unexpected output tensor type")
	}
	data := out.GetData()
	result := make([]float32, len(data))
	copy(result, data)
	return result, nil
}

// buildInput shapes window as [1, numSamples] raw waveform, or, when mel is
// configured, as a [1, numFrames, NMels] log-mel spectrogram per §3's
// frame-major layout speaker_encoder.go settled on for ResNet-style models.
func (b *OnnxBackend) buildInput(window []float32) (*ort.Tensor[float32], error) {
	if b.mel == nil {
		shape := ort.NewShape(1, int64(len(window)))
		input, err := ort.NewTensor(shape, window)
		if err != nil {
			return nil, fmt.Errorf("embed: build input tensor: %w", err)
		}
		return input, nil
	}

	melSpec, numFrames := b.mel.compute(window)
	flat := make([]float32, numFrames*b.mel.cfg.NMels)
	for t, frame := range melSpec {
		copy(flat[t*b.mel.cfg.NMels:], frame)
	}

	shape := ort.NewShape(1, int64(numFrames), int64(b.mel.cfg.NMels))
	input, err := ort.NewTensor(shape, flat)
	if err != nil {
		return nil, fmt.Errorf("embed: build mel input tensor: %w", err)
	}
	return input, nil
}

func (b *OnnxBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
}
