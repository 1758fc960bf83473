// Package train runs full-batch gradient descent over the encoded
// training set for a fixed number of epochs.
package train

import (
	"context"
	"errors"
	"fmt"
	"math"

	"dihedra/internal/nn"
)

// DefaultReportEvery is the progress cadence in epochs.
const DefaultReportEvery = 10

// ErrNonFiniteLoss reports numeric instability during training. A NaN
// or Inf loss would otherwise propagate into a misleadingly "trained"
// model, so the run aborts instead.
var ErrNonFiniteLoss = errors.New("training loss is not finite")

// Config fixes the training schedule. There is no early stopping:
// convergence is assessed externally and encoded as the epoch count.
type Config struct {
	Epochs       int
	LearningRate float64
	ReportEvery  int
	// Progress, when set, is called with the 1-based epoch and its loss
	// every ReportEvery epochs and on the final epoch. Observability
	// only; it must not mutate training state.
	Progress func(epoch int, loss float64)
}

// Run trains the network in place and returns the per-epoch mean
// binary cross-entropy losses. Each epoch resets the gradient
// accumulator, sweeps the whole training set, and applies exactly one
// gradient-descent step.
func Run(ctx context.Context, net *nn.Network, features [][]float64, labels []int, cfg Config) ([]float64, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("feature/label count mismatch: %d != %d", len(features), len(labels))
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epoch count must be > 0: %d", cfg.Epochs)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be > 0: %f", cfg.LearningRate)
	}
	reportEvery := cfg.ReportEvery
	if reportEvery <= 0 {
		reportEvery = DefaultReportEvery
	}

	grads := net.NewGradients()
	scale := 1.0 / float64(len(features))
	history := make([]float64, 0, cfg.Epochs)

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grads.Reset()
		loss := 0.0
		for i, row := range features {
			contribution, err := net.Backprop(row, labels[i], scale, grads)
			if err != nil {
				return nil, fmt.Errorf("epoch %d example %d: %w", epoch, i, err)
			}
			loss += contribution
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return nil, fmt.Errorf("%w: epoch %d", ErrNonFiniteLoss, epoch)
		}

		net.Step(grads, cfg.LearningRate)
		history = append(history, loss)

		if cfg.Progress != nil && (epoch%reportEvery == 0 || epoch == cfg.Epochs) {
			cfg.Progress(epoch, loss)
		}
	}
	return history, nil
}
