package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// DefaultTestFraction matches the reference analysis setup.
const DefaultTestFraction = 0.25

// SplitResult partitions encoded examples into disjoint train and test
// subsets. Rows are shared with the input slice headers' copies, never
// with the caller's backing arrays.
type SplitResult struct {
	XTrain [][]float64
	XTest  [][]float64
	YTrain []int
	YTest  []int
}

// Split shuffles the examples with the given seed and cuts off
// round(n*fraction) rows as the test subset. The partition is a pure
// function of (features, labels, fraction, seed): identical inputs
// always yield identical subsets.
func Split(features [][]float64, labels []int, fraction float64, seed int64) (SplitResult, error) {
	if len(features) != len(labels) {
		return SplitResult{}, fmt.Errorf("feature/label count mismatch: %d != %d", len(features), len(labels))
	}
	if len(features) == 0 {
		return SplitResult{}, fmt.Errorf("no examples to split")
	}
	if fraction <= 0 || fraction >= 1 {
		return SplitResult{}, fmt.Errorf("test fraction must be in (0,1): %f", fraction)
	}

	n := len(features)
	testSize := int(math.Round(float64(n) * fraction))
	if testSize == 0 || testSize == n {
		return SplitResult{}, fmt.Errorf("test fraction %f leaves an empty subset for %d examples", fraction, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	out := SplitResult{
		XTrain: make([][]float64, 0, n-testSize),
		XTest:  make([][]float64, 0, testSize),
		YTrain: make([]int, 0, n-testSize),
		YTest:  make([]int, 0, testSize),
	}
	for i, src := range perm {
		row := append([]float64(nil), features[src]...)
		if i < testSize {
			out.XTest = append(out.XTest, row)
			out.YTest = append(out.YTest, labels[src])
		} else {
			out.XTrain = append(out.XTrain, row)
			out.YTrain = append(out.YTrain, labels[src])
		}
	}
	return out, nil
}
