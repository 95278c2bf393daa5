package asr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	tier     Tier
	err      error
	segments []Segment
	calls    int
	delay    time.Duration
}

func (s *stubBackend) Name() string { return "stub-" + string(s.tier) }
func (s *stubBackend) Tier() Tier   { return s.tier }
func (s *stubBackend) Close()       {}
func (s *stubBackend) Decode(samples []float32, opts Options) ([]Segment, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.segments, nil
}

func tone(n int) []float32 {
	return make([]float32, n)
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	e := New(16000, map[Tier]Backend{Standard: &stubBackend{tier: Standard}})
	_, err := e.Transcribe(context.Background(), nil, Standard, Options{})
	require.Error(t, err)
}

func TestTranscribeUsesRequestedTier(t *testing.T) {
	std := &stubBackend{tier: Standard, segments: []Segment{{StartMs: 0, EndMs: 500, Text: "hello"}}}
	e := New(16000, map[Tier]Backend{Standard: std})
	segs, err := e.Transcribe(context.Background(), tone(8000), Standard, Options{})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, "hello", segs[0].Text)
	require.Equal(t, 1, std.calls)
}

func TestTranscribeRetriesOnTurboAfterFailure(t *testing.T) {
	failing := &stubBackend{tier: HighAccuracy, err: errTestDecoder}
	turbo := &stubBackend{tier: Turbo, segments: []Segment{{StartMs: 0, EndMs: 200, Text: "recovered"}}}
	e := New(16000, map[Tier]Backend{HighAccuracy: failing, Turbo: turbo})

	segs, err := e.Transcribe(context.Background(), tone(1600), HighAccuracy, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, failing.calls)
	require.Equal(t, 1, turbo.calls)
	require.Equal(t, "recovered", segs[0].Text)
}

func TestTranscribeSurfacesErrorWhenNoTurboFallback(t *testing.T) {
	failing := &stubBackend{tier: Standard, err: errTestDecoder}
	e := New(16000, map[Tier]Backend{Standard: failing})
	_, err := e.Transcribe(context.Background(), tone(1600), Standard, Options{})
	require.Error(t, err)
}

func TestTranscribeChunksLongSpansAndRebasesTimestamps(t *testing.T) {
	backend := &stubBackend{tier: Standard, segments: []Segment{{StartMs: 0, EndMs: 900, Text: "chunk"}}}
	e := New(16000, map[Tier]Backend{Standard: backend})

	// 3.5s of audio with a 1s chunk size => 4 decode calls.
	segs, err := e.Transcribe(context.Background(), tone(16000*35/10), Standard, Options{})
	require.NoError(t, err)
	require.Equal(t, 4, backend.calls)
	require.Len(t, segs, 4)
	require.Equal(t, int64(0), segs[0].StartMs)
	require.Equal(t, int64(1000), segs[1].StartMs)
	require.Equal(t, int64(3000), segs[3].StartMs)
}

func TestTranscribeHonorsCancellationWithinGraceWindow(t *testing.T) {
	backend := &stubBackend{tier: Standard, delay: 2 * time.Second, segments: []Segment{{Text: "late"}}}
	e := New(16000, map[Tier]Backend{Standard: backend})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	segs, err := e.Transcribe(ctx, tone(16000*2), Standard, Options{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Empty(t, segs)
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestClampWordsEnforcesMonotoneAndBounds(t *testing.T) {
	words := []Word{
		{StartMs: 100, EndMs: 200, Text: "a"},
		{StartMs: 150, EndMs: 250, Text: "b"}, // overlaps a, must be pushed forward
		{StartMs: 9000, EndMs: 9500, Text: "c"}, // past span, dropped
	}
	out := clampWords(words, 1000)
	require.Len(t, out, 2)
	require.Equal(t, int64(200), out[1].StartMs)
}

var errTestDecoder = &stubError{"decode failed"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
