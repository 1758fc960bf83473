package nn

import "math"

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func reluDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func heScale(fanIn int) float64 {
	if fanIn <= 0 {
		return 0
	}
	return math.Sqrt(2.0 / float64(fanIn))
}

// Argmax returns the index of the largest score; ties resolve to the
// first maximum, keeping evaluation deterministic.
func Argmax(scores []float64) int {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return best
}
