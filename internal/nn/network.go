// Package nn implements the feed-forward state classifier: one hidden
// layer with relu, two logistic output units.
package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"dihedra/internal/model"
)

// OutputWidth is fixed: one logistic unit per conformational state.
const OutputWidth = 2

var ErrInputWidthMismatch = errors.New("input width does not match network schema")

// Network holds the classifier parameters. Forward passes are read-only;
// parameters change only through Step, driven by the trainer.
type Network struct {
	inputWidth  int
	hiddenWidth int
	seed        int64

	hiddenWeight [][]float64 // [hidden][input]
	hiddenBias   []float64
	outputWeight [][]float64 // [output][hidden]
	outputBias   []float64
}

// New builds a network with parameters drawn from the given seed, so a
// (widths, seed) pair always produces identical initial weights.
func New(inputWidth, hiddenWidth int, seed int64) (*Network, error) {
	if inputWidth <= 0 {
		return nil, fmt.Errorf("input width must be > 0: %d", inputWidth)
	}
	if hiddenWidth <= 0 {
		return nil, fmt.Errorf("hidden width must be > 0: %d", hiddenWidth)
	}

	rng := rand.New(rand.NewSource(seed))
	n := &Network{
		inputWidth:   inputWidth,
		hiddenWidth:  hiddenWidth,
		seed:         seed,
		hiddenWeight: randomMatrix(rng, hiddenWidth, inputWidth),
		hiddenBias:   make([]float64, hiddenWidth),
		outputWeight: randomMatrix(rng, OutputWidth, hiddenWidth),
		outputBias:   make([]float64, OutputWidth),
	}
	return n, nil
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	scale := heScale(cols)
	m := make([][]float64, rows)
	for i := range m {
		row := make([]float64, cols)
		for j := range row {
			row[j] = rng.NormFloat64() * scale
		}
		m[i] = row
	}
	return m
}

// InputWidth reports the expected feature vector length.
func (n *Network) InputWidth() int {
	return n.inputWidth
}

// HiddenWidth reports the hidden layer size.
func (n *Network) HiddenWidth() int {
	return n.hiddenWidth
}

// Forward runs a pure forward pass: relu hidden layer, then a logistic
// score per output unit. It never mutates parameters, so concurrent
// callers may share one network.
func (n *Network) Forward(x []float64) ([]float64, error) {
	_, _, scores, err := n.trace(x)
	return scores, err
}

// ForwardBatch scores every row. Output is always len(rows) x 2.
func (n *Network) ForwardBatch(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scores, err := n.Forward(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scores
	}
	return out, nil
}

func (n *Network) trace(x []float64) (preHidden, hidden, scores []float64, err error) {
	if len(x) != n.inputWidth {
		return nil, nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInputWidthMismatch, len(x), n.inputWidth)
	}

	preHidden = make([]float64, n.hiddenWidth)
	hidden = make([]float64, n.hiddenWidth)
	for i := range preHidden {
		total := n.hiddenBias[i]
		weights := n.hiddenWeight[i]
		for j, v := range x {
			total += weights[j] * v
		}
		preHidden[i] = total
		hidden[i] = relu(total)
	}

	scores = make([]float64, OutputWidth)
	for i := range scores {
		total := n.outputBias[i]
		weights := n.outputWeight[i]
		for j, h := range hidden {
			total += weights[j] * h
		}
		scores[i] = sigmoid(total)
	}
	return preHidden, hidden, scores, nil
}

// ToModel snapshots the parameters into a persistable record.
func (n *Network) ToModel(id string) model.Network {
	return model.Network{
		ID:           id,
		InputWidth:   n.inputWidth,
		HiddenWidth:  n.hiddenWidth,
		OutputWidth:  OutputWidth,
		Seed:         n.seed,
		HiddenWeight: copyMatrix(n.hiddenWeight),
		HiddenBias:   append([]float64(nil), n.hiddenBias...),
		OutputWeight: copyMatrix(n.outputWeight),
		OutputBias:   append([]float64(nil), n.outputBias...),
	}
}

// FromModel restores a network from a persisted record.
func FromModel(record model.Network) (*Network, error) {
	if record.OutputWidth != OutputWidth {
		return nil, fmt.Errorf("unsupported output width: %d", record.OutputWidth)
	}
	if record.InputWidth <= 0 || record.HiddenWidth <= 0 {
		return nil, fmt.Errorf("invalid network widths: input=%d hidden=%d", record.InputWidth, record.HiddenWidth)
	}
	if len(record.HiddenWeight) != record.HiddenWidth || len(record.HiddenBias) != record.HiddenWidth {
		return nil, fmt.Errorf("hidden layer shape mismatch for network %s", record.ID)
	}
	if len(record.OutputWeight) != OutputWidth || len(record.OutputBias) != OutputWidth {
		return nil, fmt.Errorf("output layer shape mismatch for network %s", record.ID)
	}
	for i, row := range record.HiddenWeight {
		if len(row) != record.InputWidth {
			return nil, fmt.Errorf("hidden weight row %d shape mismatch for network %s", i, record.ID)
		}
	}
	for i, row := range record.OutputWeight {
		if len(row) != record.HiddenWidth {
			return nil, fmt.Errorf("output weight row %d shape mismatch for network %s", i, record.ID)
		}
	}

	return &Network{
		inputWidth:   record.InputWidth,
		hiddenWidth:  record.HiddenWidth,
		seed:         record.Seed,
		hiddenWeight: copyMatrix(record.HiddenWeight),
		hiddenBias:   append([]float64(nil), record.HiddenBias...),
		outputWeight: copyMatrix(record.OutputWeight),
		outputBias:   append([]float64(nil), record.OutputBias...),
	}, nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
