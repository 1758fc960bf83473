// Package dataset loads raw dihedral tables and residue maps and
// partitions encoded examples into reproducible train/test splits.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadOptions configures angle CSV parsing. The reference exports carry
// a leading snapshot index column and a header row; both are dropped.
type LoadOptions struct {
	HasHeader       bool
	DropIndexColumn bool
}

// LoadAnglesCSV reads one state's snapshots: one row per MD frame, one
// column per tracked dihedral angle in radians. Every data row must
// have the same width.
func LoadAnglesCSV(in io.Reader, opts LoadOptions) ([][]float64, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	row := 0
	if opts.HasHeader {
		if _, err := reader.Read(); err == io.EOF {
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("read angles header: %w", err)
		}
		row++
	}

	snapshots := make([][]float64, 0, 1024)
	width := -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read angles row %d: %w", row, err)
		}
		row++
		if blankRecord(record) {
			continue
		}
		if opts.DropIndexColumn {
			if len(record) < 2 {
				return nil, fmt.Errorf("angles row %d has no columns past the index", row)
			}
			record = record[1:]
		}
		if width == -1 {
			width = len(record)
		} else if len(record) != width {
			return nil, fmt.Errorf("angles row %d has %d columns, want %d", row, len(record), width)
		}

		angles := make([]float64, len(record))
		for col, field := range record {
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("angles row %d column %d: %w", row, col, err)
			}
			angles[col] = value
		}
		snapshots = append(snapshots, angles)
	}
	return snapshots, nil
}

// LoadAnglesFile is LoadAnglesCSV over a file path.
func LoadAnglesFile(path string, opts LoadOptions) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open angles csv: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadAnglesCSV(f, opts)
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
