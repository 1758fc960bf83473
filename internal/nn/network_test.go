package nn

import (
	"errors"
	"math"
	"testing"
)

func TestNewDeterministicInit(t *testing.T) {
	a, err := New(4, 8, 11)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(4, 8, 11)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := range a.hiddenWeight {
		for j := range a.hiddenWeight[i] {
			if a.hiddenWeight[i][j] != b.hiddenWeight[i][j] {
				t.Fatalf("seeded init differs at hidden[%d][%d]", i, j)
			}
		}
	}
	for i := range a.outputWeight {
		for j := range a.outputWeight[i] {
			if a.outputWeight[i][j] != b.outputWeight[i][j] {
				t.Fatalf("seeded init differs at output[%d][%d]", i, j)
			}
		}
	}
}

func TestForwardShapeAndRange(t *testing.T) {
	net, err := New(6, 4, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	scores, err := net.Forward([]float64{0.1, -0.4, 0.9, 0, 0.25, -1})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(scores) != OutputWidth {
		t.Fatalf("unexpected output width: got=%d want=%d", len(scores), OutputWidth)
	}
	for i, s := range scores {
		if s <= 0 || s >= 1 {
			t.Fatalf("score %d outside (0,1): %f", i, s)
		}
	}
}

func TestForwardIdempotent(t *testing.T) {
	net, err := New(3, 5, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	in := []float64{0.3, -0.7, 0.2}
	first, err := net.Forward(in)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	second, err := net.Forward(in)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated forward diverged at %d: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestForwardInputWidthMismatch(t *testing.T) {
	net, err := New(3, 5, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = net.Forward([]float64{0.1, 0.2})
	if !errors.Is(err, ErrInputWidthMismatch) {
		t.Fatalf("expected input width mismatch, got: %v", err)
	}
}

func TestForwardBatchWidth(t *testing.T) {
	net, err := New(2, 3, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rows := [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
	scores, err := net.ForwardBatch(rows)
	if err != nil {
		t.Fatalf("forward batch: %v", err)
	}
	if len(scores) != len(rows) {
		t.Fatalf("unexpected batch size: got=%d want=%d", len(scores), len(rows))
	}
	for i, row := range scores {
		if len(row) != OutputWidth {
			t.Fatalf("row %d width: got=%d want=%d", i, len(row), OutputWidth)
		}
	}
}

func TestModelRoundTrip(t *testing.T) {
	net, err := New(4, 3, 9)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	record := net.ToModel("net-1")
	restored, err := FromModel(record)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	in := []float64{0.5, -0.5, 0.25, 0.75}
	want, err := net.Forward(in)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	got, err := restored.Forward(in)
	if err != nil {
		t.Fatalf("forward restored: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-15 {
			t.Fatalf("restored forward differs at %d: got=%f want=%f", i, got[i], want[i])
		}
	}
}

func TestFromModelRejectsBadShapes(t *testing.T) {
	net, err := New(4, 3, 9)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	record := net.ToModel("net-1")
	record.HiddenWeight = record.HiddenWeight[:1]

	if _, err := FromModel(record); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{name: "second", scores: []float64{0.2, 0.8}, want: 1},
		{name: "first", scores: []float64{0.9, 0.1}, want: 0},
		{name: "tie-keeps-first", scores: []float64{0.5, 0.5}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Argmax(tc.scores); got != tc.want {
				t.Fatalf("unexpected argmax: got=%d want=%d", got, tc.want)
			}
		})
	}
}
