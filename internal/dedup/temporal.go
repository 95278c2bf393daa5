package dedup

// TemporalFilter rejects-by-merging incoming segments whose interval
// overlaps an already-accepted segment for the same speaker by more than
// overlap_tolerance, per §4.H. Grounded on original_source's
// TemporalAnalyzer (has_temporal_conflict / merge_overlapping_segments),
// adapted from its Vec-based most-recent-conflict scan to a per-speaker
// slice since this filter only ever needs to compare against one speaker's
// history at a time.
type TemporalFilter struct {
	cfg      Config
	accepted map[string][]Segment
}

func NewTemporalFilter(cfg Config) *TemporalFilter {
	return &TemporalFilter{cfg: cfg, accepted: make(map[string][]Segment)}
}

// Process returns the segment to accept: either seg itself (no conflicting
// overlap for this speaker) or a merge of seg into the most recent
// conflicting accepted segment. The merged result replaces the prior entry
// in the filter's own history.
func (f *TemporalFilter) Process(seg Segment) (Segment, bool) {
	history := f.accepted[seg.SpeakerID]

	for i := len(history) - 1; i >= 0; i-- {
		prior := history[i]
		if overlapMs(prior, seg) > f.cfg.OverlapToleranceMs {
			merged := mergeSegments(prior, seg)
			history[i] = merged
			f.accepted[seg.SpeakerID] = history
			return merged, true
		}
	}

	f.accepted[seg.SpeakerID] = append(history, seg)
	return seg, true
}

func overlapMs(a, b Segment) int64 {
	start := a.StartMs
	if b.StartMs > start {
		start = b.StartMs
	}
	end := a.EndMs
	if b.EndMs < end {
		end = b.EndMs
	}
	if end <= start {
		return 0
	}
	return end - start
}

// mergeSegments extends the end-time, unions the text, and averages
// confidence weighted by duration, per §4.H's merge rule.
func mergeSegments(a, b Segment) Segment {
	start := a.StartMs
	if b.StartMs < start {
		start = b.StartMs
	}
	end := a.EndMs
	if b.EndMs > end {
		end = b.EndMs
	}

	text := a.Text
	if b.Text != "" && b.Text != a.Text {
		text = text + " " + b.Text
	}

	aDur := float64(a.durationMs())
	bDur := float64(b.durationMs())
	totalDur := aDur + bDur
	var confidence float32
	if totalDur > 0 {
		confidence = float32((float64(a.Confidence)*aDur + float64(b.Confidence)*bDur) / totalDur)
	}

	return Segment{
		SpeakerID:  a.SpeakerID,
		StartMs:    start,
		EndMs:      end,
		Text:       text,
		Confidence: confidence,
	}
}
