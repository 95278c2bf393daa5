// Package merge implements §4.I: given a window's ASR Segments and
// SpeakerSegments, produce AttributedSegments. Grounded on
// original_source's segment_merger.rs (SegmentMerger::merge_segments /
// align_segments / split_transcription_by_speakers / post_process_segments),
// generalized from its async/Result-returning shape to plain synchronous
// Go functions since nothing here does I/O.
package merge

import (
	"sort"
	"strings"

	"github.com/voiceloom/meetscribe/internal/asr"
)

// SpeakerSpan is one diarized interval attributed to a speaker_id.
type SpeakerSpan struct {
	SpeakerID  string
	StartMs    int64
	EndMs      int64
	Confidence float32
}

// Attributed is the final output: text attributed to a speaker with the
// three confidence figures from §4.I.
type Attributed struct {
	SpeakerID               string
	StartMs                 int64
	EndMs                   int64
	Text                    string
	TranscriptionConfidence float32
	SpeakerConfidence       float32
	Overall                 float32
	Merged                  bool
}

func (a Attributed) durationMs() int64 { return a.EndMs - a.StartMs }

const (
	overlapRatioThreshold = 0.5
	unknownSpeaker        = "unknown_speaker"
)

// Config holds the merge post-pass tunable from §6.
type Config struct {
	GapMergeMs int64
}

func DefaultConfig() Config {
	return Config{GapMergeMs: 100}
}

// Merger produces AttributedSegments per §4.I.
type Merger struct {
	cfg Config
}

func New(cfg Config) *Merger {
	return &Merger{cfg: cfg}
}

// Merge aligns speakerSpans against asrSegments and returns the sorted,
// post-processed AttributedSegments.
func (m *Merger) Merge(speakerSpans []SpeakerSpan, asrSegments []asr.Segment) []Attributed {
	if len(speakerSpans) == 0 && len(asrSegments) == 0 {
		return nil
	}

	var out []Attributed
	if len(speakerSpans) == 0 {
		for _, a := range asrSegments {
			out = append(out, unattributed(a))
		}
		return sortFinal(out)
	}

	if len(asrSegments) == 0 {
		for _, s := range speakerSpans {
			out = append(out, Attributed{
				SpeakerID:         s.SpeakerID,
				StartMs:           s.StartMs,
				EndMs:             s.EndMs,
				SpeakerConfidence: s.Confidence,
				Overall:           s.Confidence,
			})
		}
		return sortFinal(out)
	}

	for _, a := range asrSegments {
		overlapping := overlappingSpeakers(a.StartMs, a.EndMs, speakerSpans)
		switch len(overlapping) {
		case 0:
			out = append(out, unattributed(a))
		case 1:
			s := overlapping[0]
			out = append(out, Attributed{
				SpeakerID:               s.SpeakerID,
				StartMs:                 a.StartMs,
				EndMs:                   a.EndMs,
				Text:                    a.Text,
				TranscriptionConfidence: a.Confidence,
				SpeakerConfidence:       s.Confidence,
				Overall:                 (a.Confidence + s.Confidence) / 2,
				Merged:                  true,
			})
		default:
			out = append(out, splitBySpeakers(a, overlapping)...)
		}
	}

	out = postProcess(out, m.cfg.GapMergeMs)
	return sortFinal(out)
}

func unattributed(a asr.Segment) Attributed {
	return Attributed{
		SpeakerID:               unknownSpeaker,
		StartMs:                 a.StartMs,
		EndMs:                   a.EndMs,
		Text:                    a.Text,
		TranscriptionConfidence: a.Confidence,
		Overall:                 a.Confidence * 0.5,
	}
}

// overlappingSpeakers returns, in temporal order, the speaker spans whose
// overlap with [startMs, endMs) covers at least overlapRatioThreshold of
// its duration.
func overlappingSpeakers(startMs, endMs int64, speakers []SpeakerSpan) []SpeakerSpan {
	duration := float64(endMs - startMs)
	if duration <= 0 {
		return nil
	}
	var matched []SpeakerSpan
	for _, s := range speakers {
		overlap := float64(overlapMs(startMs, endMs, s.StartMs, s.EndMs))
		if overlap/duration >= overlapRatioThreshold {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartMs < matched[j].StartMs })
	return matched
}

func overlapMs(aStart, aEnd, bStart, bEnd int64) int64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}

// splitBySpeakers attributes a's text across multiple overlapping speakers.
// When a carries a word timestamp for every token, the split follows those
// timestamps (each word goes to whichever speaker span covers more of it);
// otherwise it falls back to a whitespace-token-count proportional split
// with the last chunk receiving the remainder, per §4.I.
func splitBySpeakers(a asr.Segment, speakers []SpeakerSpan) []Attributed {
	if len(a.Words) > 0 && len(a.Words) == len(strings.Fields(a.Text)) {
		return splitByWordTimestamps(a, speakers)
	}
	return splitByWordCount(a, speakers)
}

func splitByWordTimestamps(a asr.Segment, speakers []SpeakerSpan) []Attributed {
	assignments := make([]int, len(a.Words))
	for i, w := range a.Words {
		assignments[i] = bestSpeakerForWord(w, speakers)
	}

	var out []Attributed
	start := 0
	for start < len(a.Words) {
		end := start
		for end < len(a.Words) && assignments[end] == assignments[start] {
			end++
		}
		words := a.Words[start:end]
		s := speakers[assignments[start]]
		texts := make([]string, len(words))
		for i, w := range words {
			texts[i] = w.Text
		}
		out = append(out, Attributed{
			SpeakerID:               s.SpeakerID,
			StartMs:                 words[0].StartMs,
			EndMs:                   words[len(words)-1].EndMs,
			Text:                    strings.Join(texts, " "),
			TranscriptionConfidence: a.Confidence,
			SpeakerConfidence:       s.Confidence,
			Overall:                 (a.Confidence + s.Confidence) / 2,
			Merged:                  true,
		})
		start = end
	}
	return out
}

// bestSpeakerForWord returns the index into speakers whose span overlaps w
// the most; ties and zero-overlap words fall back to the nearest speaker by
// start-time distance, so every word gets attributed.
func bestSpeakerForWord(w asr.Word, speakers []SpeakerSpan) int {
	best, bestOverlap := 0, int64(-1)
	for i, s := range speakers {
		overlap := overlapMs(w.StartMs, w.EndMs, s.StartMs, s.EndMs)
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	if bestOverlap > 0 {
		return best
	}

	best, bestDist := 0, int64(-1)
	mid := (w.StartMs + w.EndMs) / 2
	for i, s := range speakers {
		dist := abs64(mid - s.StartMs)
		if bestDist == -1 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// splitByWordCount splits a's text proportionally to each speaker's overlap
// duration, per §4.I: word-count proportional, last chunk gets the
// remainder, each sub-segment's time slice is [prev_end, prev_end+dur*frac).
func splitByWordCount(a asr.Segment, speakers []SpeakerSpan) []Attributed {
	totalDuration := float64(a.EndMs - a.StartMs)
	if totalDuration <= 0 {
		return nil
	}

	words := strings.Fields(a.Text)
	var out []Attributed
	accumulated := a.StartMs
	wordsUsed := 0

	for i, s := range speakers {
		overlap := float64(overlapMs(a.StartMs, a.EndMs, s.StartMs, s.EndMs))
		fraction := overlap / totalDuration
		segmentDuration := int64(totalDuration * fraction)
		segmentEnd := accumulated + segmentDuration
		if segmentEnd > a.EndMs {
			segmentEnd = a.EndMs
		}

		var text string
		if i == len(speakers)-1 {
			text = strings.Join(words[wordsUsed:], " ")
		} else {
			wordCount := int(float64(len(words))*fraction + 0.5)
			if wordsUsed+wordCount > len(words) {
				wordCount = len(words) - wordsUsed
			}
			text = strings.Join(words[wordsUsed:wordsUsed+wordCount], " ")
			wordsUsed += wordCount
		}

		out = append(out, Attributed{
			SpeakerID:               s.SpeakerID,
			StartMs:                 accumulated,
			EndMs:                   segmentEnd,
			Text:                    text,
			TranscriptionConfidence: a.Confidence,
			SpeakerConfidence:       s.Confidence,
			Overall:                 (a.Confidence + s.Confidence) / 2,
			Merged:                  true,
		})

		accumulated = segmentEnd
		if accumulated >= a.EndMs {
			break
		}
	}
	return out
}

// postProcess merges adjacent same-speaker segments separated by a gap
// under gapMergeMs, and splits the boundary at the overlap midpoint when
// adjacent segments disagree on speaker and overlap, per §4.I.
func postProcess(segments []Attributed, gapMergeMs int64) []Attributed {
	if len(segments) <= 1 {
		return segments
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].StartMs < segments[j].StartMs })

	var processed []Attributed
	current := segments[0]

	for _, next := range segments[1:] {
		switch {
		case current.SpeakerID == next.SpeakerID && next.StartMs-current.EndMs < gapMergeMs:
			current = mergeAdjacent(current, next)
		case current.EndMs > next.StartMs && current.SpeakerID != next.SpeakerID:
			adjustedCurrent, adjustedNext := splitAtMidpoint(current, next)
			processed = append(processed, adjustedCurrent)
			current = adjustedNext
		default:
			processed = append(processed, current)
			current = next
		}
	}
	processed = append(processed, current)
	return processed
}

func mergeAdjacent(a, b Attributed) Attributed {
	text := a.Text
	if b.Text != "" {
		if text != "" {
			text += " "
		}
		text += b.Text
	}
	return Attributed{
		SpeakerID:               a.SpeakerID,
		StartMs:                 a.StartMs,
		EndMs:                   b.EndMs,
		Text:                    text,
		TranscriptionConfidence: (a.TranscriptionConfidence + b.TranscriptionConfidence) / 2,
		SpeakerConfidence:       (a.SpeakerConfidence + b.SpeakerConfidence) / 2,
		Overall:                 (a.Overall + b.Overall) / 2,
		Merged:                  true,
	}
}

func splitAtMidpoint(a, b Attributed) (Attributed, Attributed) {
	midpoint := (a.EndMs + b.StartMs) / 2
	a.EndMs = midpoint
	b.StartMs = midpoint
	return a, b
}

// sortFinal sorts by start_time ascending, ties broken by longer duration
// first, per §4.I.
func sortFinal(segments []Attributed) []Attributed {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].StartMs != segments[j].StartMs {
			return segments[i].StartMs < segments[j].StartMs
		}
		return segments[i].durationMs() > segments[j].durationMs()
	})
	return segments
}
