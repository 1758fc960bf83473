package nn

import (
	"fmt"
	"math"
)

// Gradients accumulates parameter gradients with the network's shapes.
// The trainer resets it before every full-batch epoch.
type Gradients struct {
	hiddenWeight [][]float64
	hiddenBias   []float64
	outputWeight [][]float64
	outputBias   []float64
}

// NewGradients allocates a zeroed gradient accumulator for the network.
func (n *Network) NewGradients() *Gradients {
	return &Gradients{
		hiddenWeight: zeroMatrix(n.hiddenWidth, n.inputWidth),
		hiddenBias:   make([]float64, n.hiddenWidth),
		outputWeight: zeroMatrix(OutputWidth, n.hiddenWidth),
		outputBias:   make([]float64, OutputWidth),
	}
}

// Reset zeroes the accumulator in place.
func (g *Gradients) Reset() {
	zeroInPlace(g.hiddenWeight)
	for i := range g.hiddenBias {
		g.hiddenBias[i] = 0
	}
	zeroInPlace(g.outputWeight)
	for i := range g.outputBias {
		g.outputBias[i] = 0
	}
}

// Backprop runs one example through the network and accumulates the
// gradients of the mean binary cross-entropy loss, scaled by the
// caller-chosen weight (1/batch for full-batch training). It returns
// the example's scaled loss contribution.
func (n *Network) Backprop(x []float64, label int, scale float64, grads *Gradients) (float64, error) {
	if label != 0 && label != 1 {
		return 0, fmt.Errorf("label must be 0 or 1: %d", label)
	}

	preHidden, hidden, scores, err := n.trace(x)
	if err != nil {
		return 0, err
	}

	target := [OutputWidth]float64{}
	target[label] = 1

	loss := 0.0
	// With logistic outputs, d(BCE)/d(pre-activation) collapses to p - t.
	deltaOut := [OutputWidth]float64{}
	for i, p := range scores {
		loss += binaryCrossEntropy(p, target[i])
		deltaOut[i] = (p - target[i]) / OutputWidth
	}
	loss = loss / OutputWidth * scale

	for i := range deltaOut {
		d := deltaOut[i] * scale
		grads.outputBias[i] += d
		row := grads.outputWeight[i]
		for j, h := range hidden {
			row[j] += d * h
		}
	}

	for j := 0; j < n.hiddenWidth; j++ {
		back := 0.0
		for i := range deltaOut {
			back += deltaOut[i] * n.outputWeight[i][j]
		}
		d := back * reluDerivative(preHidden[j]) * scale
		grads.hiddenBias[j] += d
		row := grads.hiddenWeight[j]
		for k, v := range x {
			row[k] += d * v
		}
	}

	return loss, nil
}

// Step applies one gradient-descent update: w -= learningRate * grad.
func (n *Network) Step(grads *Gradients, learningRate float64) {
	stepMatrix(n.hiddenWeight, grads.hiddenWeight, learningRate)
	stepVector(n.hiddenBias, grads.hiddenBias, learningRate)
	stepMatrix(n.outputWeight, grads.outputWeight, learningRate)
	stepVector(n.outputBias, grads.outputBias, learningRate)
}

const crossEntropyEpsilon = 1e-12

func binaryCrossEntropy(p, t float64) float64 {
	p = math.Min(math.Max(p, crossEntropyEpsilon), 1-crossEntropyEpsilon)
	return -(t*math.Log(p) + (1-t)*math.Log(1-p))
}

func zeroMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func zeroInPlace(m [][]float64) {
	for _, row := range m {
		for i := range row {
			row[i] = 0
		}
	}
}

func stepMatrix(params, grads [][]float64, learningRate float64) {
	for i, row := range params {
		g := grads[i]
		for j := range row {
			row[j] -= learningRate * g[j]
		}
	}
}

func stepVector(params, grads []float64, learningRate float64) {
	for i := range params {
		params[i] -= learningRate * grads[i]
	}
}
