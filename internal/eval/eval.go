// Package eval computes classification accuracy on held-out data.
package eval

import (
	"fmt"

	"dihedra/internal/nn"
)

// Accuracy returns the fraction of rows where the argmax of the
// network's scores equals the true label. Pure function of its inputs.
func Accuracy(net *nn.Network, features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, fmt.Errorf("evaluation set is empty")
	}
	if len(features) != len(labels) {
		return 0, fmt.Errorf("feature/label count mismatch: %d != %d", len(features), len(labels))
	}

	correct := 0
	for i, row := range features {
		scores, err := net.Forward(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if nn.Argmax(scores) == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features)), nil
}
