package ablate

import (
	"context"
	"math/rand"
	"testing"

	"dihedra/internal/dataset"
	"dihedra/internal/model"
	"dihedra/internal/nn"
)

// signNetwork classifies by the sign of feature 0 and ignores the rest.
func signNetwork(t *testing.T, inputWidth int) *nn.Network {
	t.Helper()
	hiddenWeight := [][]float64{make([]float64, inputWidth)}
	hiddenWeight[0][0] = 1
	net, err := nn.FromModel(model.Network{
		ID:           "sign",
		InputWidth:   inputWidth,
		HiddenWidth:  1,
		OutputWidth:  nn.OutputWidth,
		HiddenWeight: hiddenWeight,
		HiddenBias:   []float64{0},
		OutputWeight: [][]float64{{-4}, {4}},
		OutputBias:   []float64{0, 0},
	})
	if err != nil {
		t.Fatalf("build network: %v", err)
	}
	return net
}

func signTestSet(n, width int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	features := make([][]float64, n)
	labels := make([]int, n)
	for i := range features {
		row := make([]float64, width)
		for j := range row {
			row[j] = rng.Float64()*2 - 1
		}
		features[i] = row
		if row[0] >= 0 {
			labels[i] = 1
		}
	}
	return features, labels
}

func residueMap(t *testing.T, raw map[string][]int, width int) *dataset.ResidueMap {
	t.Helper()
	m, err := dataset.NewResidueMap(raw, width)
	if err != nil {
		t.Fatalf("residue map: %v", err)
	}
	return m
}

func TestRunRanksInformativeResidueFirst(t *testing.T) {
	features, labels := signTestSet(80, 4, 5)
	net := signNetwork(t, 4)
	residues := residueMap(t, map[string][]int{
		"ARG17": {0, 1},
		"LYS42": {2, 3},
	}, 4)

	result, err := Run(context.Background(), net, features, labels, residues)
	if err != nil {
		t.Fatalf("ablate: %v", err)
	}
	if result.Baseline != 1 {
		t.Fatalf("unexpected baseline: got=%f want=1", result.Baseline)
	}
	if len(result.ByResidue) != 2 {
		t.Fatalf("unexpected result count: %d", len(result.ByResidue))
	}

	// Labels are fully determined by column 0, so masking ARG17 must
	// hurt strictly more than masking LYS42.
	if result.ByResidue[0].Residue != "ARG17" {
		t.Fatalf("expected ARG17 ranked first, got %s", result.ByResidue[0].Residue)
	}
	if result.ByResidue[0].Accuracy >= result.ByResidue[1].Accuracy {
		t.Fatalf("informative residue not strictly worse: %f vs %f",
			result.ByResidue[0].Accuracy, result.ByResidue[1].Accuracy)
	}
	if result.ByResidue[1].Accuracy != result.Baseline {
		t.Fatalf("masking uninformative columns changed accuracy: got=%f want=%f",
			result.ByResidue[1].Accuracy, result.Baseline)
	}
}

func TestRunConstantColumnsLeaveAccuracyUnchanged(t *testing.T) {
	features, labels := signTestSet(40, 3, 9)
	for _, row := range features {
		row[2] = 0.75 // constant column: masking to the mean is a no-op
	}
	net := signNetwork(t, 3)
	residues := residueMap(t, map[string][]int{"GLY3": {2}}, 3)

	result, err := Run(context.Background(), net, features, labels, residues)
	if err != nil {
		t.Fatalf("ablate: %v", err)
	}
	if result.ByResidue[0].Accuracy != result.Baseline {
		t.Fatalf("constant-column ablation changed accuracy: got=%f want=%f",
			result.ByResidue[0].Accuracy, result.Baseline)
	}
}

func TestRunDoesNotMutateTestSet(t *testing.T) {
	features, labels := signTestSet(30, 4, 3)
	snapshot := make([][]float64, len(features))
	for i, row := range features {
		snapshot[i] = append([]float64(nil), row...)
	}

	net := signNetwork(t, 4)
	residues := residueMap(t, map[string][]int{
		"ARG17": {0, 1},
		"LYS42": {2, 3},
	}, 4)

	if _, err := Run(context.Background(), net, features, labels, residues); err != nil {
		t.Fatalf("ablate: %v", err)
	}

	for i, row := range features {
		for j, v := range row {
			if v != snapshot[i][j] {
				t.Fatalf("test set mutated at [%d][%d]: got=%v want=%v", i, j, v, snapshot[i][j])
			}
		}
	}
}

func TestRunResultsIndependentOfOtherResidues(t *testing.T) {
	features, labels := signTestSet(60, 4, 13)
	net := signNetwork(t, 4)

	full := residueMap(t, map[string][]int{
		"ARG17": {0, 1},
		"LYS42": {2, 3},
	}, 4)
	solo := residueMap(t, map[string][]int{"ARG17": {0, 1}}, 4)

	fullResult, err := Run(context.Background(), net, features, labels, full)
	if err != nil {
		t.Fatalf("ablate full: %v", err)
	}
	soloResult, err := Run(context.Background(), net, features, labels, solo)
	if err != nil {
		t.Fatalf("ablate solo: %v", err)
	}

	var fullARG float64
	for _, r := range fullResult.ByResidue {
		if r.Residue == "ARG17" {
			fullARG = r.Accuracy
		}
	}
	if soloResult.ByResidue[0].Accuracy != fullARG {
		t.Fatalf("ARG17 accuracy depends on other residues: %f vs %f",
			soloResult.ByResidue[0].Accuracy, fullARG)
	}
}

func TestTopK(t *testing.T) {
	result := Result{ByResidue: []model.ResidueAccuracy{
		{Residue: "A", Accuracy: 0.1},
		{Residue: "B", Accuracy: 0.2},
		{Residue: "C", Accuracy: 0.3},
	}}

	top := result.TopK(2)
	if len(top) != 2 || top[0].Residue != "A" || top[1].Residue != "B" {
		t.Fatalf("unexpected top-2: %v", top)
	}
	if got := result.TopK(0); len(got) != 3 {
		t.Fatalf("top-0 should keep everything, got %d", len(got))
	}
	if got := result.TopK(10); len(got) != 3 {
		t.Fatalf("oversized K should clamp, got %d", len(got))
	}
}

func TestRunValidation(t *testing.T) {
	net := signNetwork(t, 2)
	residues := residueMap(t, map[string][]int{"ARG17": {0}}, 2)

	if _, err := Run(context.Background(), net, nil, nil, residues); err == nil {
		t.Fatal("expected empty test set error")
	}
	if _, err := Run(context.Background(), net, [][]float64{{0.1, 0.2}}, []int{0, 1}, residues); err == nil {
		t.Fatal("expected mismatch error")
	}
}
