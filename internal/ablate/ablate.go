// Package ablate estimates per-residue discriminative signal by
// masking one residue's feature columns at a time and re-evaluating a
// trained classifier on the held-out set.
//
// Masking overwrites the residue's columns with the column-wise mean of
// the original test set. This is deliberately not true feature removal
// (no retraining): a residue whose columns were constant to begin with
// must leave accuracy unchanged, which keeps the importance ranking
// interpretable.
package ablate

import (
	"context"
	"fmt"
	"sort"

	"dihedra/internal/dataset"
	"dihedra/internal/eval"
	"dihedra/internal/model"
	"dihedra/internal/nn"
)

// DefaultTopK matches the reference report size.
const DefaultTopK = 11

// Result is one full leave-one-residue-out pass.
type Result struct {
	// Baseline is accuracy on the unmodified test set.
	Baseline float64
	// ByResidue is sorted ascending by post-ablation accuracy, so the
	// residues carrying the most signal come first. Ties keep the
	// residue map's stable order.
	ByResidue []model.ResidueAccuracy
}

// Run evaluates every residue in the map. The test set is never
// mutated: each residue gets an independent masked copy, and the
// masking means are computed once from the unmodified test set.
func Run(ctx context.Context, net *nn.Network, features [][]float64, labels []int, residues *dataset.ResidueMap) (Result, error) {
	if len(features) == 0 {
		return Result{}, fmt.Errorf("test set is empty")
	}
	if len(features) != len(labels) {
		return Result{}, fmt.Errorf("feature/label count mismatch: %d != %d", len(features), len(labels))
	}

	baseline, err := eval.Accuracy(net, features, labels)
	if err != nil {
		return Result{}, fmt.Errorf("baseline accuracy: %w", err)
	}

	means := columnMeans(features)

	byResidue := make([]model.ResidueAccuracy, 0, residues.Len())
	for _, residue := range residues.Residues() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		columns, err := residues.Columns(residue)
		if err != nil {
			return Result{}, err
		}

		masked := maskColumns(features, columns, means)
		accuracy, err := eval.Accuracy(net, masked, labels)
		if err != nil {
			return Result{}, fmt.Errorf("residue %s: %w", residue, err)
		}
		byResidue = append(byResidue, model.ResidueAccuracy{Residue: residue, Accuracy: accuracy})
	}

	sort.SliceStable(byResidue, func(i, j int) bool {
		return byResidue[i].Accuracy < byResidue[j].Accuracy
	})
	return Result{Baseline: baseline, ByResidue: byResidue}, nil
}

// TopK returns the K most informative residues (lowest post-ablation
// accuracy first). K <= 0 or K beyond the result keeps everything.
func (r Result) TopK(k int) []model.ResidueAccuracy {
	if k <= 0 || k > len(r.ByResidue) {
		k = len(r.ByResidue)
	}
	return append([]model.ResidueAccuracy(nil), r.ByResidue[:k]...)
}

func columnMeans(features [][]float64) []float64 {
	means := make([]float64, len(features[0]))
	for _, row := range features {
		for col, v := range row {
			means[col] += v
		}
	}
	for col := range means {
		means[col] /= float64(len(features))
	}
	return means
}

// maskColumns copies the matrix and overwrites the given columns with
// the precomputed original-set means.
func maskColumns(features [][]float64, columns []int, means []float64) [][]float64 {
	masked := make([][]float64, len(features))
	for i, row := range features {
		copied := append([]float64(nil), row...)
		for _, col := range columns {
			copied[col] = means[col]
		}
		masked[i] = copied
	}
	return masked
}
