package audio

import (
	"context"
	"strings"
	"time"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/internal/wire"
)

var captureLog = obs.New("audio.capture")

// Capture is the top-level audio source selector described in §4.A: it
// tries the platform's low-latency backend first and falls back to the
// generic cross-platform API when the primary fails to initialize or open.
// It also caches, per device, the sample rate and resample quality that
// last opened successfully, so a later session on the same device skips
// re-probing.
type Capture struct {
	backends        []Backend
	profilePath     string
	profiles        *wire.DeviceProfileStore
}

// NewCapture probes available backends in priority order (malgo, then
// portaudio) and keeps whichever initialize successfully; Open retries
// across all of them until one opens a device or all have failed.
// profilePath is the device_profiles.json path; pass "" to disable caching.
func NewCapture(profilePath string) *Capture {
	c := &Capture{profilePath: profilePath}
	if b, err := newMalgoBackend(); err == nil {
		c.backends = append(c.backends, b)
	} else {
		captureLog.Warnf("malgo backend unavailable: %v", err)
	}
	if b, err := newPortaudioBackend(); err == nil {
		c.backends = append(c.backends, b)
	} else {
		captureLog.Warnf("portaudio backend unavailable: %v", err)
	}
	if profilePath != "" {
		if store, err := wire.LoadDeviceProfiles(profilePath); err == nil {
			c.profiles = store
		} else {
			captureLog.Warnf("device profile cache unreadable: %v", err)
			c.profiles = &wire.DeviceProfileStore{Profiles: map[string]wire.DeviceProfile{}}
		}
	}
	return c
}

// ListDevices returns input devices from the first backend that answers
// successfully.
func (c *Capture) ListDevices(ctx context.Context) ([]Device, error) {
	var lastErr error
	for _, b := range c.backends {
		devices, err := b.ListDevices(ctx)
		if err == nil {
			return devices, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errs.New(errs.DeviceUnavailable, "no capture backend available")
	}
	return nil, lastErr
}

// Open tries each backend in order and returns the first Source that opens
// successfully. A PermissionDenied error from a backend is returned at once
// without trying the rest. If every backend fails, it returns an
// AllMethodsFailed error naming which backends were attempted.
func (c *Capture) Open(ctx context.Context, cfg Config) (Source, error) {
	if len(c.backends) == 0 {
		return nil, errs.New(errs.AllMethodsFailed, "no capture backend initialized")
	}

	c.applyCachedProfile(&cfg)

	var attempted []string
	for _, b := range c.backends {
		src, err := b.Open(ctx, cfg)
		if err == nil {
			c.recordProfile(cfg)
			return src, nil
		}
		attempted = append(attempted, b.Name())
		if errs.Is(err, errs.PermissionDenied) {
			return nil, err
		}
		captureLog.Warnf("%s: open failed: %v", b.Name(), err)
	}
	return nil, errs.New(errs.AllMethodsFailed, "all capture backends failed: %s", strings.Join(attempted, ", "))
}

// applyCachedProfile fills in SampleRate/ResampleQuality from a still-valid
// cached profile when cfg leaves them unset, so repeat sessions on a known
// device skip re-probing.
func (c *Capture) applyCachedProfile(cfg *Config) {
	if c.profiles == nil || cfg.DeviceID == "" {
		return
	}
	p, ok := c.profiles.Profiles[cfg.DeviceID]
	if !ok || !p.Valid(time.Now()) {
		return
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = p.SampleRateHz
	}
	if cfg.ResampleQuality == QualityHigh && p.ResampleQuality != "" {
		cfg.ResampleQuality = ParseQuality(p.ResampleQuality)
	}
}

// recordProfile persists the configuration that successfully opened a
// device, so the next session can skip straight to it.
func (c *Capture) recordProfile(cfg Config) {
	if c.profiles == nil || c.profilePath == "" || cfg.DeviceID == "" {
		return
	}
	c.profiles.Profiles[cfg.DeviceID] = wire.DeviceProfile{
		DeviceID:        cfg.DeviceID,
		SampleRateHz:    cfg.SampleRate,
		ResampleQuality: cfg.ResampleQuality.String(),
		CachedAt:        time.Now(),
	}
	if err := c.profiles.Save(c.profilePath); err != nil {
		captureLog.Warnf("device profile cache save failed: %v", err)
	}
}
