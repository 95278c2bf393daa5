package vad

// EnergyScorer is the built-in energy + spectral-centroid speech-probability
// estimator, used when no neural backend is configured. It mirrors the
// teacher's calculateWindowEnergy RMS approach combined with a simple
// centroid heuristic.
type EnergyScorer struct{}

func (EnergyScorer) Score(window []float32) float32 {
	if len(window) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range window {
		sumSq += float64(s) * float64(s)
	}
	energy := sumSq / float64(len(window))

	var weightedSum, magnitudeSum float64
	for i, s := range window {
		mag := float64(s)
		if mag < 0 {
			mag = -mag
		}
		weightedSum += float64(i) * mag
		magnitudeSum += mag
	}
	var centroid float64
	if magnitudeSum > 0 {
		centroid = weightedSum / magnitudeSum
	}

	var energyScore, spectralScore float32
	if energy > 0.0001 {
		energyScore = 0.6
	}
	if centroid > 1 && centroid < float64(len(window)) {
		spectralScore = 0.4
	}
	total := energyScore + spectralScore
	if total > 1 {
		total = 1
	}
	return total
}
