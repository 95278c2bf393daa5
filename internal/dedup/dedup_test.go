package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTimingRejectsInvalidSpans(t *testing.T) {
	require.Error(t, ValidateTiming(Segment{StartMs: 3000, EndMs: 1000}))
	require.Error(t, ValidateTiming(Segment{StartMs: -1, EndMs: 2000}))
	require.Error(t, ValidateTiming(Segment{StartMs: 1000, EndMs: 70_000}))
	require.NoError(t, ValidateTiming(Segment{StartMs: 1000, EndMs: 3000}))
}

func TestTemporalFilterMergesOverlapBeyondTolerance(t *testing.T) {
	f := NewTemporalFilter(DefaultConfig())

	first, ok := f.Process(Segment{SpeakerID: "speaker_1", StartMs: 1000, EndMs: 3000, Text: "Hello", Confidence: 0.9})
	require.True(t, ok)
	require.Equal(t, "Hello", first.Text)

	merged, ok := f.Process(Segment{SpeakerID: "speaker_1", StartMs: 2000, EndMs: 4000, Text: "world", Confidence: 0.8})
	require.True(t, ok)
	require.Equal(t, int64(1000), merged.StartMs)
	require.Equal(t, int64(4000), merged.EndMs)
	require.Contains(t, merged.Text, "Hello")
	require.Contains(t, merged.Text, "world")
}

func TestTemporalFilterDoesNotMergeNonOverlapping(t *testing.T) {
	f := NewTemporalFilter(DefaultConfig())
	f.Process(Segment{SpeakerID: "speaker_1", StartMs: 1000, EndMs: 3000, Text: "Hello everyone"})
	second, ok := f.Process(Segment{SpeakerID: "speaker_1", StartMs: 5000, EndMs: 7000, Text: "Let's get started"})
	require.True(t, ok)
	require.Equal(t, "Let's get started", second.Text)
}

func TestTemporalFilterIgnoresOtherSpeakers(t *testing.T) {
	f := NewTemporalFilter(DefaultConfig())
	f.Process(Segment{SpeakerID: "speaker_1", StartMs: 1000, EndMs: 3000, Text: "Hello"})
	other, ok := f.Process(Segment{SpeakerID: "speaker_2", StartMs: 2000, EndMs: 4000, Text: "Welcome"})
	require.True(t, ok)
	require.Equal(t, "Welcome", other.Text)
}

func TestContentFingerprinterFlagsExactRepeat(t *testing.T) {
	c := NewContentFingerprinter(DefaultConfig())
	require.False(t, c.IsDuplicate("Hello world, this is a test.", 1000))
	require.True(t, c.IsDuplicate("Hello world, this is a test.", 2000))
}

func TestContentFingerprinterFlagsNearDuplicate(t *testing.T) {
	c := NewContentFingerprinter(DefaultConfig())
	require.False(t, c.IsDuplicate("Welcome everyone to our meeting today", 3000))
	require.True(t, c.IsDuplicate("Welcome everyone to the meeting today", 4000))
}

func TestContentFingerprinterIgnoresUnrelatedText(t *testing.T) {
	c := NewContentFingerprinter(DefaultConfig())
	require.False(t, c.IsDuplicate("Completely different content here", 5000))
	require.False(t, c.IsDuplicate("Another unrelated sentence entirely", 6000))
}

func TestContentFingerprinterWindowExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DupWindowMs = 1000
	c := NewContentFingerprinter(cfg)
	require.False(t, c.IsDuplicate("Hello world, this is a test.", 0))
	require.False(t, c.IsDuplicate("Hello world, this is a test.", 5000))
}

func TestContentFingerprinterEvictsBeyondCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheCapacity = 2
	c := NewContentFingerprinter(cfg)
	c.IsDuplicate("first segment text", 0)
	c.IsDuplicate("second segment text", 1)
	c.IsDuplicate("third segment text", 2)
	size, _ := c.Stats()
	require.LessOrEqual(t, size, 2)
}

func TestRarityWeightFavorsLongerWords(t *testing.T) {
	require.Less(t, rarityWeight("the"), float32(0.5))
	require.Less(t, rarityWeight("and"), float32(0.5))
	require.Greater(t, rarityWeight("transcription"), float32(1.0))
	require.Greater(t, rarityWeight("implementation"), float32(1.0))
}

func TestFilterRejectsInvalidTimingBeforeOtherStages(t *testing.T) {
	f := New(DefaultConfig())
	_, accepted, err := f.Process(Segment{SpeakerID: "speaker_1", StartMs: 3000, EndMs: 1000, Text: "bad"}, 0)
	require.Error(t, err)
	require.False(t, accepted)
}

func TestFilterEndToEndAcceptThenDuplicate(t *testing.T) {
	f := New(DefaultConfig())

	_, accepted, err := f.Process(Segment{SpeakerID: "speaker_1", StartMs: 1000, EndMs: 4000, Text: "Hello everyone, welcome to our meeting today."}, 1000)
	require.NoError(t, err)
	require.True(t, accepted)

	_, accepted, err = f.Process(Segment{SpeakerID: "speaker_1", StartMs: 13000, EndMs: 16000, Text: "Hello everyone, welcome to our meeting today."}, 13000)
	require.NoError(t, err)
	require.False(t, accepted, "exact repeat within dup_window should be rejected as a content duplicate")
}
