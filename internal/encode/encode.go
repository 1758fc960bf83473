// Package encode turns raw dihedral angles into classifier features.
//
// Dihedral angles are periodic: -pi and pi name the same torsion, which
// breaks gradient-based learning on the raw values. Each angle is
// therefore emitted as its (sin, cos) pair, a continuous representation
// that is bijective on the circle. Pairs are grouped per angle, so the
// feature columns for angle i are 2i and 2i+1.
package encode

import (
	"errors"
	"fmt"
	"math"
)

// ErrSchemaMismatch reports an input whose angle count disagrees with
// the expected schema. Truncating silently would corrupt the residue
// column mapping downstream, so encoding fails instead.
var ErrSchemaMismatch = errors.New("angle count does not match schema")

// Width returns the encoded feature width for the given angle count.
func Width(angleCount int) int {
	return 2 * angleCount
}

// Angles encodes one snapshot's raw angles (radians) into a feature
// vector of length 2*angleCount, preserving angle order.
func Angles(angles []float64, angleCount int) ([]float64, error) {
	if len(angles) != angleCount {
		return nil, fmt.Errorf("%w: got %d angles, want %d", ErrSchemaMismatch, len(angles), angleCount)
	}

	out := make([]float64, 0, Width(angleCount))
	for _, angle := range angles {
		out = append(out, math.Sin(angle), math.Cos(angle))
	}
	return out, nil
}

// Snapshots encodes a whole state's snapshots and attaches the state's
// label to every row. Every row must match the shared angle schema.
func Snapshots(snapshots [][]float64, angleCount, label int) ([][]float64, []int, error) {
	features := make([][]float64, 0, len(snapshots))
	labels := make([]int, 0, len(snapshots))
	for i, snapshot := range snapshots {
		row, err := Angles(snapshot, angleCount)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		features = append(features, row)
		labels = append(labels, label)
	}
	return features, labels, nil
}
