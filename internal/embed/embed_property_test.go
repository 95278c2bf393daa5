package embed

import (
	"testing"

	"pgregory.net/rapid"
)

// TestCosineSimilaritySymmetric checks §8's round-trip property "Cosine
// similarity is symmetric: sim(a,b) = sim(b,a)" against arbitrary
// equal-length vectors, not just the hand-picked cases in embed_test.go.
func TestCosineSimilaritySymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dim := rapid.IntRange(1, 16).Draw(t, "dim")
		a := rapid.SliceOfN(rapid.Float32Range(-1, 1), dim, dim).Draw(t, "a")
		b := rapid.SliceOfN(rapid.Float32Range(-1, 1), dim, dim).Draw(t, "b")

		ab := CosineSimilarity(a, b)
		ba := CosineSimilarity(b, a)
		if ab != ba {
			t.Fatalf("sim(a,b)=%v != sim(b,a)=%v", ab, ba)
		}
	})
}

// TestL2NormalizeProducesUnitNorm checks §8's quantified invariant for
// Embedding: |‖e.vector‖₂ - 1| < 1e-3, for any non-degenerate input vector
// (l2Normalize leaves near-zero vectors untouched rather than dividing by
// ~0, matching its own documented behavior).
func TestL2NormalizeProducesUnitNorm(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dim := rapid.IntRange(1, 32).Draw(t, "dim")
		v := rapid.SliceOfN(rapid.Float32Range(-10, 10), dim, dim).Draw(t, "v")

		var sumSq float64
		for _, x := range v {
			sumSq += float64(x) * float64(x)
		}
		if sumSq < 1e-6 {
			return
		}

		out := l2Normalize(v)
		var normSq float64
		for _, x := range out {
			normSq += float64(x) * float64(x)
		}
		if diff := normSq - 1; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("‖normalize(v)‖² = %v, want ~1", normSq)
		}
	})
}
