package session

import (
	"context"
	"testing"
	"time"

	"github.com/voiceloom/meetscribe/internal/asr"
	"github.com/voiceloom/meetscribe/internal/ringbuffer"
	"github.com/voiceloom/meetscribe/pkg/api"
)

// fakeASRBackend returns one fixed transcript per decode call, regardless of
// input, so tests can assert on the merge/dedup wiring without a real model.
type fakeASRBackend struct {
	tier asr.Tier
	text string
}

func (f *fakeASRBackend) Name() string   { return "fake-asr" }
func (f *fakeASRBackend) Tier() asr.Tier { return f.tier }
func (f *fakeASRBackend) Decode(samples []float32, opts asr.Options) ([]asr.Segment, error) {
	durationMs := int64(len(samples) * 1000 / ringbuffer.SampleRate)
	return []asr.Segment{{StartMs: 0, EndMs: durationMs, Text: f.text, Confidence: 0.9}}, nil
}
func (f *fakeASRBackend) Close() {}

// fakeEmbedBackend returns a constant unit vector so every speech segment
// clusters into the same speaker deterministically.
type fakeEmbedBackend struct{ dim int }

func (f *fakeEmbedBackend) Dimension() int { return f.dim }
func (f *fakeEmbedBackend) Infer(window []float32) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}

func testBackends() Backends {
	return Backends{
		VADScorer: nil, // falls back to the built-in energy scorer
		ASR: map[asr.Tier]asr.Backend{
			asr.Standard: &fakeASRBackend{tier: asr.Standard, text: "hello world"},
			asr.Turbo:    &fakeASRBackend{tier: asr.Turbo, text: "hello world"},
		},
		Embed: &fakeEmbedBackend{dim: 4},
	}
}

func loudSamples(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 0.8
		} else {
			out[i] = -0.8
		}
	}
	return out
}

func TestSessionPushSamplesAcceptsChunksWithoutError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBufferMs = 500

	s, err := New("sess-1", cfg, testBackends(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	var pos int64
	for i := 0; i < 20; i++ {
		chunk := loudSamples(1600) // 100ms at 16kHz
		if err := s.PushSamples(ctx, chunk, pos); err != nil {
			t.Fatalf("PushSamples: %v", err)
		}
		pos += int64(len(chunk))
	}

	if err := s.pipeline.wait(); err != nil {
		t.Fatalf("pipeline.wait: %v", err)
	}
}

func TestSessionLifecycleStartIsNoOpWhenAlreadyRunning(t *testing.T) {
	s, err := New("sess-2", DefaultConfig(), testBackends(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.state.transition(Initializing)
	s.state.transition(Running)

	if err := s.Start(context.Background(), nil, nil); err != nil {
		t.Fatalf("Start on already-Running session must be a no-op, got error: %v", err)
	}
	if s.State() != Running {
		t.Fatalf("expected state to remain Running, got %s", s.State())
	}
}

func TestSessionStopIsIdempotentOnTerminalState(t *testing.T) {
	s, err := New("sess-3", DefaultConfig(), testBackends(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.state.transition(Initializing)
	s.state.transition(Running)
	s.state.transition(Stopping)
	s.state.transition(Stopped)

	if _, err := s.Stop(context.Background()); err == nil {
		t.Fatalf("expected Stop on an already-Stopped session to error")
	}
}

func TestSessionStopEmitsComplete(t *testing.T) {
	s, err := New("sess-4", DefaultConfig(), testBackends(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := s.Subscribe("watcher")
	s.state.transition(Initializing)
	s.state.transition(Running)
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	complete, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if complete.SessionID != "sess-4" {
		t.Fatalf("unexpected Complete.SessionID: %q", complete.SessionID)
	}

	sawComplete := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if !sawComplete {
					t.Fatalf("channel closed before a Complete event was observed")
				}
				return
			}
			if ev.Kind == api.KindComplete {
				sawComplete = true
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for channel to close")
		}
	}
}
