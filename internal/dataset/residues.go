package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// ResidueMap is the validated lookup from residue identifier (for
// example "ARG17") to the encoded feature columns derived from that
// residue's dihedral angles. It is built once at startup; the ablation
// loop only reads it.
type ResidueMap struct {
	columns map[string][]int
	order   []string
}

// LoadResidueMap decodes a JSON object of residue id -> column indices
// and validates it against the encoded feature width. Empty index sets
// and out-of-range indices are rejected up front rather than skipped
// during ablation.
func LoadResidueMap(in io.Reader, featureWidth int) (*ResidueMap, error) {
	var raw map[string][]int
	if err := json.NewDecoder(in).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode residue map: %w", err)
	}
	return NewResidueMap(raw, featureWidth)
}

// LoadResidueMapFile is LoadResidueMap over a file path.
func LoadResidueMapFile(path string, featureWidth int) (*ResidueMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open residue map: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadResidueMap(f, featureWidth)
}

// NewResidueMap validates raw residue-to-column assignments.
func NewResidueMap(raw map[string][]int, featureWidth int) (*ResidueMap, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("residue map is empty")
	}

	columns := make(map[string][]int, len(raw))
	order := make([]string, 0, len(raw))
	for residue, indices := range raw {
		if residue == "" {
			return nil, fmt.Errorf("residue map contains an empty residue id")
		}
		if len(indices) == 0 {
			return nil, fmt.Errorf("residue %s has no feature columns", residue)
		}
		for _, index := range indices {
			if index < 0 || index >= featureWidth {
				return nil, fmt.Errorf("residue %s column %d out of range [0,%d)", residue, index, featureWidth)
			}
		}
		columns[residue] = append([]int(nil), indices...)
		order = append(order, residue)
	}
	sort.Strings(order)

	return &ResidueMap{columns: columns, order: order}, nil
}

// Residues lists residue identifiers in a stable (sorted) order.
func (m *ResidueMap) Residues() []string {
	return append([]string(nil), m.order...)
}

// Columns returns the feature columns for one residue.
func (m *ResidueMap) Columns(residue string) ([]int, error) {
	indices, ok := m.columns[residue]
	if !ok {
		return nil, fmt.Errorf("residue %s not present in residue map", residue)
	}
	return append([]int(nil), indices...), nil
}

// Len reports the number of mapped residues.
func (m *ResidueMap) Len() int {
	return len(m.order)
}
