// Package cluster implements §4.F: grouping speaker Embeddings into
// speaker identities, both online (streaming assignment) and batch
// (end-of-session agglomerative re-clustering).
package cluster

import (
	"fmt"
	"sort"

	"github.com/voiceloom/meetscribe/internal/embed"
	"github.com/voiceloom/meetscribe/internal/errs"
)

// Config holds the thresholds and speaker-count bounds from §6.
type Config struct {
	SimilarityThreshold float32
	MinSpeakers         int
	MaxSpeakers         int
}

func (c Config) validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return errs.New(errs.InvalidThreshold, "cluster: similarity_threshold %.3f out of [0,1]", c.SimilarityThreshold)
	}
	if c.MinSpeakers < 1 || c.MaxSpeakers < c.MinSpeakers {
		return errs.New(errs.InvalidRange, "cluster: min_speakers %d / max_speakers %d invalid", c.MinSpeakers, c.MaxSpeakers)
	}
	return nil
}

// group is a working cluster during agglomeration: an ephemeral ID plus its
// member embeddings.
type group struct {
	id         string
	embeddings []embed.Embedding
}

func (g group) totalSpeechTimeMs() int64 {
	var total int64
	for _, e := range g.embeddings {
		total += e.EndMs - e.StartMs
	}
	return total
}

func (g group) medianTimestampMs() int64 {
	if len(g.embeddings) == 0 {
		return 0
	}
	starts := make([]int64, len(g.embeddings))
	for i, e := range g.embeddings {
		starts[i] = e.StartMs
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	return starts[len(starts)/2]
}

// OnlineClusterer assigns each arriving Embedding to the best existing
// speaker or mints a new one, per §4.F's streaming mode. Assignments are
// final: it never revokes a label already handed to the caller.
type OnlineClusterer struct {
	cfg      Config
	speakers []group
	nextID   int
}

func NewOnline(cfg Config) (*OnlineClusterer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &OnlineClusterer{cfg: cfg, nextID: 1}, nil
}

// Assign returns the speaker ID this embedding belongs to, creating a new
// speaker if none of the existing clusters are similar enough.
func (c *OnlineClusterer) Assign(e embed.Embedding) string {
	bestIdx := -1
	var bestSim float32

	for i, sp := range c.speakers {
		sim := meanSimilarity(e, sp.embeddings)
		if sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}

	if bestIdx >= 0 && bestSim > c.cfg.SimilarityThreshold {
		c.speakers[bestIdx].embeddings = append(c.speakers[bestIdx].embeddings, e)
		return c.speakers[bestIdx].id
	}

	id := fmt.Sprintf("speaker_%d", c.nextID)
	c.nextID++
	c.speakers = append(c.speakers, group{id: id, embeddings: []embed.Embedding{e}})
	return id
}

// Speakers returns the current ephemeral speaker_id -> embeddings mapping.
func (c *OnlineClusterer) Speakers() map[string][]embed.Embedding {
	out := make(map[string][]embed.Embedding, len(c.speakers))
	for _, sp := range c.speakers {
		out[sp.id] = sp.embeddings
	}
	return out
}

func meanSimilarity(e embed.Embedding, cluster []embed.Embedding) float32 {
	if len(cluster) == 0 {
		return 0
	}
	var sum float32
	for _, ce := range cluster {
		sum += embed.CosineSimilarity(e.Vector, ce.Vector)
	}
	return sum / float32(len(cluster))
}

// BatchClusterer performs end-of-session agglomerative re-clustering, per
// §4.F's batch mode.
type BatchClusterer struct {
	cfg    Config
	nextID int
}

func NewBatch(cfg Config) (*BatchClusterer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &BatchClusterer{cfg: cfg, nextID: 1}, nil
}

// Cluster groups embeddings into ephemeral speaker IDs via agglomerative
// merging, then enforces min/max speaker bounds.
func (b *BatchClusterer) Cluster(embeddings []embed.Embedding) map[string][]embed.Embedding {
	if len(embeddings) == 0 {
		return map[string][]embed.Embedding{}
	}

	groups := make([]group, len(embeddings))
	for i, e := range embeddings {
		groups[i] = group{id: fmt.Sprintf("tmp_%d", i), embeddings: []embed.Embedding{e}}
	}

	groups = b.agglomerate(groups, b.cfg.MaxSpeakers, b.cfg.SimilarityThreshold)
	groups = b.enforceLimits(groups)

	final := make(map[string][]embed.Embedding, len(groups))
	for _, g := range groups {
		id := fmt.Sprintf("speaker_%d", b.nextID)
		b.nextID++
		final[id] = g.embeddings
	}
	return final
}

// agglomerate repeatedly merges the most-similar pair while it clears
// threshold and the group count still exceeds target.
func (b *BatchClusterer) agglomerate(groups []group, target int, threshold float32) []group {
	for len(groups) > target {
		i, j, sim := mostSimilarPair(groups)
		if i < 0 || sim < threshold {
			break
		}
		groups = mergePair(groups, i, j)
	}
	return groups
}

// enforceLimits splits the largest group by median temporal ordering while
// under min_speakers, then greedily merges while over max_speakers.
func (b *BatchClusterer) enforceLimits(groups []group) []group {
	for len(groups) < b.cfg.MinSpeakers {
		idx := largestGroupIndex(groups)
		if idx < 0 || len(groups[idx].embeddings) < 2 {
			break
		}
		a, c := splitByMedianTime(groups[idx])
		groups = append(groups[:idx], groups[idx+1:]...)
		groups = append(groups, a, c)
	}

	for len(groups) > b.cfg.MaxSpeakers {
		i, j, _ := mostSimilarPair(groups)
		if i < 0 {
			break
		}
		groups = mergePair(groups, i, j)
	}
	return groups
}

// mostSimilarPair finds the two groups with highest cluster-to-cluster mean
// pairwise similarity, breaking ties per §4.F: higher combined
// total_speech_time wins, then earlier median timestamp.
func mostSimilarPair(groups []group) (int, int, float32) {
	if len(groups) < 2 {
		return -1, -1, 0
	}
	bestI, bestJ := -1, -1
	var bestSim float32 = -1
	var bestCombinedSpeech int64
	var bestMedian int64

	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			sim := clusterSimilarity(groups[i], groups[j])
			combinedSpeech := groups[i].totalSpeechTimeMs() + groups[j].totalSpeechTimeMs()
			median := minInt64(groups[i].medianTimestampMs(), groups[j].medianTimestampMs())

			better := false
			switch {
			case sim > bestSim:
				better = true
			case sim == bestSim && combinedSpeech > bestCombinedSpeech:
				better = true
			case sim == bestSim && combinedSpeech == bestCombinedSpeech && median < bestMedian:
				better = true
			}
			if better {
				bestSim = sim
				bestI, bestJ = i, j
				bestCombinedSpeech = combinedSpeech
				bestMedian = median
			}
		}
	}
	return bestI, bestJ, bestSim
}

func clusterSimilarity(a, b group) float32 {
	if len(a.embeddings) == 0 || len(b.embeddings) == 0 {
		return 0
	}
	var total float32
	var comparisons int
	for _, ea := range a.embeddings {
		for _, eb := range b.embeddings {
			total += embed.CosineSimilarity(ea.Vector, eb.Vector)
			comparisons++
		}
	}
	if comparisons == 0 {
		return 0
	}
	return total / float32(comparisons)
}

func mergePair(groups []group, i, j int) []group {
	merged := group{
		id:         fmt.Sprintf("merged_%s_%s", groups[i].id, groups[j].id),
		embeddings: append(append([]embed.Embedding{}, groups[i].embeddings...), groups[j].embeddings...),
	}
	out := make([]group, 0, len(groups)-1)
	for k, g := range groups {
		if k != i && k != j {
			out = append(out, g)
		}
	}
	out = append(out, merged)
	return out
}

func largestGroupIndex(groups []group) int {
	idx := -1
	max := -1
	for i, g := range groups {
		if len(g.embeddings) > max {
			max = len(g.embeddings)
			idx = i
		}
	}
	return idx
}

// splitByMedianTime splits a group into two halves ordered by start time,
// per §4.F's "split the largest cluster by temporal ordering (median
// split)".
func splitByMedianTime(g group) (group, group) {
	sorted := append([]embed.Embedding{}, g.embeddings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })
	mid := len(sorted) / 2

	a := group{id: g.id + "_a", embeddings: sorted[:mid]}
	b := group{id: g.id + "_b", embeddings: sorted[mid:]}
	return a, b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
