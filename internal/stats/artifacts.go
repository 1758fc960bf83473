package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"dihedra/internal/model"
)

const runIndexFile = "run_index.json"

// RunIndexEntry is one line of the reports-dir index: enough to list
// past ablation runs without opening their per-run files.
type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	SplitID          string  `json:"split_id"`
	NetworkID        string  `json:"network_id"`
	ResidueCount     int     `json:"residue_count"`
	BaselineAccuracy float64 `json:"baseline_accuracy"`
	TopResidue       string  `json:"top_residue,omitempty"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// AblationReport is the per-run JSON artifact written alongside the index.
type AblationReport struct {
	RunID            string                  `json:"run_id"`
	SplitID          string                  `json:"split_id"`
	NetworkID        string                  `json:"network_id"`
	BaselineAccuracy float64                 `json:"baseline_accuracy"`
	ByResidue        []model.ResidueAccuracy `json:"by_residue"`
	TopResidues      []model.ResidueAccuracy `json:"top_residues"`
	CreatedAtUTC     string                  `json:"created_at_utc"`
}

// WriteRunArtifacts writes the per-run report directory:
// ablation_report.json plus a top_residues.csv for spreadsheet use.
// Returns the run directory path.
func WriteRunArtifacts(baseDir string, report AblationReport) (string, error) {
	if report.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, report.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "ablation_report.json"), report); err != nil {
		return "", err
	}
	if err := writeTopResiduesCSV(filepath.Join(runDir, "top_residues.csv"), report.BaselineAccuracy, report.TopResidues); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex upserts the entry into run_index.json, keyed by RunID.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index entries newest first. A missing index
// file yields an empty slice, not an error.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ReadAblationReport loads the per-run report. A missing report returns
// found=false without an error.
func ReadAblationReport(baseDir, runID string) (AblationReport, bool, error) {
	path := filepath.Join(baseDir, runID, "ablation_report.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AblationReport{}, false, nil
		}
		return AblationReport{}, false, err
	}

	var report AblationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return AblationReport{}, false, err
	}
	return report, true, nil
}

// ExportRunArtifacts copies a run's report files into outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"ablation_report.json", "top_residues.csv"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeTopResiduesCSV(path string, baseline float64, top []model.ResidueAccuracy) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"rank", "residue", "masked_accuracy", "accuracy_drop"}); err != nil {
		return err
	}
	for i, entry := range top {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			entry.Residue,
			strconv.FormatFloat(entry.Accuracy, 'f', -1, 64),
			strconv.FormatFloat(baseline-entry.Accuracy, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
