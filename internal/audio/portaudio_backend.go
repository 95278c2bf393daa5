package audio

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// portaudioBackend is the generic cross-platform fallback capture API,
// used when the native low-latency backend (malgo) fails to initialize or
// to open a device. A PermissionDenied open error is returned to the caller
// as-is; the fallback is not tried for it.
type portaudioBackend struct {
	initialized bool
}

func newPortaudioBackend() (*portaudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "portaudio: initialize")
	}
	return &portaudioBackend{initialized: true}, nil
}

func (b *portaudioBackend) Name() string { return "portaudio" }

func (b *portaudioBackend) ListDevices(ctx context.Context) ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "portaudio: enumerate devices")
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                   info.Name,
			Name:                 info.Name,
			IsInput:              true,
			SupportedSampleRates: []int{16000, 22050, 32000, 44100, 48000},
			Channels:             info.MaxInputChannels,
		})
	}
	return devices, nil
}

func (b *portaudioBackend) Open(ctx context.Context, cfg Config) (Source, error) {
	channels := cfg.Channels
	if channels == 0 {
		channels = 1
	}
	rate := cfg.SampleRate
	if rate == 0 {
		rate = 48000
	}
	framesPerBuffer := rate / 50 // 20ms buffers

	buf := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(rate), framesPerBuffer, buf)
	if err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "portaudio: open default stream")
	}
	if err := stream.Start(); err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "portaudio: start stream")
	}

	src := &portaudioSource{
		stream:   stream,
		buf:      buf,
		rate:     rate,
		channels: channels,
		frames:   make(chan AudioFrame, 64),
		stop:     make(chan struct{}),
	}
	go src.readLoop()
	return src, nil
}

type portaudioSource struct {
	stream   *portaudio.Stream
	buf      []float32
	rate     int
	channels int
	frames   chan AudioFrame
	stop     chan struct{}
}

func (s *portaudioSource) readLoop() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		samples := make([]float32, len(s.buf))
		copy(samples, s.buf)
		frame := AudioFrame{
			Samples:    samples,
			SampleRate: s.rate,
			Channels:   s.channels,
			CapturedAt: time.Now(),
			Source:     SourceMicrophone,
			Duration:   time.Duration(len(samples)/s.channels) * time.Second / time.Duration(s.rate),
		}
		select {
		case s.frames <- frame:
		case <-s.stop:
			return
		}
	}
}

func (s *portaudioSource) Pull(ctx context.Context) (AudioFrame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return AudioFrame{}, ctx.Err()
	}
}

func (s *portaudioSource) Close() error {
	close(s.stop)
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}
