package dedup

import (
	"math"
	"strings"
)

// fingerprint is a multiset of tokens weighted by rarity: repeated tokens
// accumulate weight rather than being deduplicated, per §4.H.
type fingerprint map[string]float32

type fpEntry struct {
	fp          fingerprint
	text        string
	timestampMs int64
}

// ContentFingerprinter is the content-duplicate filter from §4.H: a bounded
// window of recent accepted text fingerprints, checked by cosine similarity
// within a time window. Grounded on original_source's ContentHasher
// (is_duplicate / get_word_rarity_weight), rebuilt around a rarity formula
// this codebase can compute without the original's corpus-frequency table:
// common stopwords weigh 0.1, everything else weighs by length.
type ContentFingerprinter struct {
	cfg     Config
	entries []fpEntry
}

func NewContentFingerprinter(cfg Config) *ContentFingerprinter {
	return &ContentFingerprinter{cfg: cfg}
}

// IsDuplicate reports whether text is a near-duplicate of something accepted
// within dup_window, and records it as seen regardless (matching the
// teacher's is_duplicate, which hashes every call, duplicate or not).
func (c *ContentFingerprinter) IsDuplicate(text string, nowMs int64) bool {
	fp := buildFingerprint(text)
	dup := false

	for _, e := range c.entries {
		if abs64(nowMs-e.timestampMs) >= c.cfg.DupWindowMs {
			continue
		}
		if cosineSimilarity(fp, e.fp) > c.cfg.DupThreshold {
			dup = true
			break
		}
	}

	c.entries = append(c.entries, fpEntry{fp: fp, text: text, timestampMs: nowMs})
	if len(c.entries) > c.cfg.CacheCapacity {
		c.entries = c.entries[len(c.entries)-c.cfg.CacheCapacity:]
	}
	return dup
}

// Stats mirrors the teacher's get_cache_stats: (cached segments, vocabulary
// size) for session diagnostics.
func (c *ContentFingerprinter) Stats() (cacheSize, vocabSize int) {
	vocab := make(map[string]struct{})
	for _, e := range c.entries {
		for tok := range e.fp {
			vocab[tok] = struct{}{}
		}
	}
	return len(c.entries), len(vocab)
}

func buildFingerprint(text string) fingerprint {
	fp := make(fingerprint)
	for _, tok := range tokenize(text) {
		fp[tok] += rarityWeight(tok)
	}
	return fp
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()-–—")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// rarityWeight scores a token's contribution to the fingerprint: common
// function words are weighted down so that shared boilerplate ("the",
// "and") doesn't drive two unrelated segments to look similar; longer
// content words weigh more since they carry more meaning and are less
// likely to collide by coincidence.
func rarityWeight(token string) float32 {
	if stopwords[token] {
		return 0.1
	}
	weight := len(token) - 3
	if weight < 1 {
		weight = 1
	}
	return float32(weight)
}

func cosineSimilarity(a, b fingerprint) float32 {
	var dot, normA, normB float64
	for tok, wa := range a {
		normA += float64(wa) * float64(wa)
		if wb, ok := b[tok]; ok {
			dot += float64(wa) * float64(wb)
		}
	}
	for _, wb := range b {
		normB += float64(wb) * float64(wb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// stopwords is the top-100 English function-word list from §4.H's "rarer
// tokens weigh more" rule.
var stopwords = buildStopwords()

func buildStopwords() map[string]bool {
	words := []string{
		"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
		"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
		"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
		"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
		"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
		"when", "make", "can", "like", "time", "no", "just", "him", "know", "take",
		"people", "into", "year", "your", "good", "some", "could", "them", "see", "other",
		"than", "then", "now", "look", "only", "come", "its", "over", "think", "also",
		"back", "after", "use", "two", "how", "our", "work", "first", "well", "way",
		"even", "new", "want", "because", "any", "these", "give", "day", "most", "us",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
