package audio

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/voiceloom/meetscribe/internal/errs"
)

// malgoBackend wraps gen2brain/malgo, the teacher's primary capture API
// (miniaudio bindings with native low-latency backends per platform).
type malgoBackend struct {
	ctx *malgo.AllocatedContext
}

func newMalgoBackend() (*malgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "malgo: init context")
	}
	return &malgoBackend{ctx: ctx}, nil
}

func (b *malgoBackend) Name() string { return "malgo" }

func (b *malgoBackend) ListDevices(ctx context.Context) ([]Device, error) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "malgo: enumerate capture devices")
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:                   deviceIDToString(info.ID),
			Name:                 info.Name(),
			IsInput:              true,
			SupportedSampleRates: []int{16000, 22050, 32000, 44100, 48000},
			Channels:             2,
		})
	}
	return devices, nil
}

func (b *malgoBackend) Open(ctx context.Context, cfg Config) (Source, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	channels := cfg.Channels
	if channels == 0 {
		channels = 1
	}
	deviceConfig.Capture.Channels = uint32(channels)
	rate := cfg.SampleRate
	if rate == 0 {
		rate = 48000
	}
	deviceConfig.SampleRate = uint32(rate)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.DeviceID != "" && cfg.DeviceID != "default" {
		id, err := stringToDeviceID(cfg.DeviceID)
		if err == nil {
			deviceConfig.Capture.DeviceID = id.Pointer()
		}
	}

	frames := make(chan AudioFrame, 64)
	onRecvFrames := func(_, in []byte, frameCount uint32) {
		n := int(frameCount) * channels
		if len(in) != n*4 {
			return
		}
		samples := make([]float32, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(in[i*4 : i*4+4])
			samples[i] = math.Float32frombits(bits)
		}
		frame := AudioFrame{
			Samples:    samples,
			SampleRate: rate,
			Channels:   channels,
			CapturedAt: time.Now(),
			Source:     SourceMicrophone,
			Duration:   time.Duration(frameCount) * time.Second / time.Duration(rate),
		}
		select {
		case frames <- frame:
		default:
			// Consumer is behind; drop the oldest-pending frame rather
			// than block the real-time capture callback.
			select {
			case <-frames:
			default:
			}
			frames <- frame
		}
	}

	dev, err := malgo.InitDevice(b.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "malgo: init device")
	}
	if err := dev.Start(); err != nil {
		return nil, errs.Wrap(errs.DeviceUnavailable, err, "malgo: start device")
	}

	return &malgoSource{device: dev, frames: frames}, nil
}

type malgoSource struct {
	device *malgo.Device
	frames chan AudioFrame
}

func (s *malgoSource) Pull(ctx context.Context) (AudioFrame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return AudioFrame{}, ctx.Err()
	}
}

func (s *malgoSource) Close() error {
	s.device.Uninit()
	return nil
}

func deviceIDToString(id malgo.DeviceID) string {
	return string(id[:])
}

func stringToDeviceID(s string) (*malgo.DeviceID, error) {
	var id malgo.DeviceID
	copy(id[:], s)
	return &id, nil
}
