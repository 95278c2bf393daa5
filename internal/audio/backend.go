package audio

import "context"

// Backend is the capability set a concrete capture implementation exposes.
// Two backends are wired: malgo (primary, low-latency native API) and
// portaudio (generic cross-platform fallback), selected by Capture.Open per
// §4.A's "must support at least the platform's low-latency input API with a
// generic fallback" contract.
type Backend interface {
	Name() string
	ListDevices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, cfg Config) (Source, error)
}

// Source is an opened capture stream. Pull-mode consumers call Pull; a
// Source may additionally be driven in push mode by an internal callback
// that feeds the same channel Pull reads from.
type Source interface {
	Pull(ctx context.Context) (AudioFrame, error)
	Close() error
}
