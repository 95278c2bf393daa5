// Package dedup implements §4.H: the temporal-conflict and content-duplicate
// filters that run on the stream of SpeakerSegment/ASRSegment candidates
// before they become AttributedSegments.
package dedup

import "github.com/voiceloom/meetscribe/internal/errs"

// Segment is the minimal candidate shape both filters operate on. Callers
// adapt their own SpeakerSegment/ASRSegment types to this before filtering.
type Segment struct {
	SpeakerID  string
	StartMs    int64
	EndMs      int64
	Text       string
	Confidence float32
}

func (s Segment) durationMs() int64 { return s.EndMs - s.StartMs }

const maxDurationMs = 60_000

// Config holds the tunables from §4.H and §6, all with the spec's defaults.
type Config struct {
	OverlapToleranceMs int64
	DupThreshold       float32
	DupWindowMs        int64
	CacheCapacity      int
}

func DefaultConfig() Config {
	return Config{
		OverlapToleranceMs: 100,
		DupThreshold:       0.6,
		DupWindowMs:        15_000,
		CacheCapacity:      256,
	}
}

// ValidateTiming is the always-on invalid-timing rejection from §4.H: end
// must be after start, times non-negative, duration bounded.
func ValidateTiming(seg Segment) error {
	if seg.EndMs <= seg.StartMs {
		return errs.New(errs.InvalidRange, "dedup: end %d <= start %d", seg.EndMs, seg.StartMs)
	}
	if seg.StartMs < 0 || seg.EndMs < 0 {
		return errs.New(errs.InvalidRange, "dedup: negative timestamp (start=%d end=%d)", seg.StartMs, seg.EndMs)
	}
	if seg.durationMs() > maxDurationMs {
		return errs.New(errs.InvalidRange, "dedup: duration %dms exceeds %dms", seg.durationMs(), maxDurationMs)
	}
	return nil
}

// Filter chains invalid-timing rejection, the temporal-conflict filter, and
// the content-duplicate filter, in that order, per §4.H.
type Filter struct {
	cfg      Config
	temporal *TemporalFilter
	content  *ContentFingerprinter
}

func New(cfg Config) *Filter {
	return &Filter{
		cfg:      cfg,
		temporal: NewTemporalFilter(cfg),
		content:  NewContentFingerprinter(cfg),
	}
}

// Process runs seg through the full pipeline. accepted is false when the
// segment was rejected outright (invalid timing, or a content duplicate);
// when a temporal merge occurred, the returned Segment is the merged result
// that replaces the previously accepted one for that speaker.
func (f *Filter) Process(seg Segment, nowMs int64) (result Segment, accepted bool, err error) {
	if err := ValidateTiming(seg); err != nil {
		return Segment{}, false, err
	}

	merged, ok := f.temporal.Process(seg)
	if !ok {
		return Segment{}, false, nil
	}

	if f.content.IsDuplicate(merged.Text, nowMs) {
		return Segment{}, false, nil
	}
	return merged, true, nil
}
