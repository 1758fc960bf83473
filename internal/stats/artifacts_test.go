package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"dihedra/internal/model"
)

func TestWriteReadAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	report := AblationReport{
		RunID:            runID,
		SplitID:          "split-1",
		NetworkID:        "net-1",
		BaselineAccuracy: 0.9,
		ByResidue: []model.ResidueAccuracy{
			{Residue: "ARG17", Accuracy: 0.6},
			{Residue: "GLY5", Accuracy: 0.9},
		},
		TopResidues: []model.ResidueAccuracy{
			{Residue: "ARG17", Accuracy: 0.6},
		},
		CreatedAtUTC: "2026-02-10T10:00:00Z",
	}

	runDir, err := WriteRunArtifacts(baseDir, report)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"ablation_report.json", "top_residues.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	loaded, found, err := ReadAblationReport(baseDir, runID)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !found {
		t.Fatalf("expected report to be found")
	}
	if loaded.RunID != runID || loaded.BaselineAccuracy != 0.9 {
		t.Fatalf("unexpected report: got=%+v", loaded)
	}
	if len(loaded.ByResidue) != 2 || loaded.ByResidue[0].Residue != "ARG17" {
		t.Fatalf("unexpected by-residue entries: got=%+v", loaded.ByResidue)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range []string{"ablation_report.json", "top_residues.csv"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), AblationReport{}); err == nil {
		t.Fatalf("expected error for missing run id")
	}
}

func TestReadAblationReportMissing(t *testing.T) {
	_, found, err := ReadAblationReport(t.TempDir(), "run-absent")
	if err != nil {
		t.Fatalf("read missing report: %v", err)
	}
	if found {
		t.Fatalf("expected missing report to report found=false")
	}
}

func TestTopResiduesCSVContents(t *testing.T) {
	baseDir := t.TempDir()
	report := AblationReport{
		RunID:            "run-csv",
		BaselineAccuracy: 0.9,
		TopResidues: []model.ResidueAccuracy{
			{Residue: "ARG17", Accuracy: 0.6},
			{Residue: "LYS3", Accuracy: 0.75},
		},
		CreatedAtUTC: "2026-02-10T10:00:00Z",
	}

	runDir, err := WriteRunArtifacts(baseDir, report)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	file, err := os.Open(filepath.Join(runDir, "top_residues.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("unexpected record count: got=%d want=3", len(records))
	}
	if records[0][0] != "rank" || records[0][3] != "accuracy_drop" {
		t.Fatalf("unexpected header: got=%v", records[0])
	}
	if records[1][1] != "ARG17" || records[1][2] != "0.6" {
		t.Fatalf("unexpected first row: got=%v", records[1])
	}
	if records[2][0] != "2" || records[2][1] != "LYS3" {
		t.Fatalf("unexpected second row: got=%v", records[2])
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		SplitID:          "split-1",
		NetworkID:        "net-1",
		ResidueCount:     42,
		BaselineAccuracy: 0.80,
		TopResidue:       "ARG17",
		CreatedAtUTC:     "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-2",
		SplitID:          "split-1",
		NetworkID:        "net-2",
		ResidueCount:     42,
		BaselineAccuracy: 0.85,
		TopResidue:       "LYS3",
		CreatedAtUTC:     "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("unexpected entry count: got=%d want=2", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("expected newest first: got=%s,%s", entries[0].RunID, entries[1].RunID)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		SplitID:          "split-1",
		NetworkID:        "net-1b",
		ResidueCount:     42,
		BaselineAccuracy: 0.82,
		TopResidue:       "GLU9",
		CreatedAtUTC:     "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list run index after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("unexpected entry count after upsert: got=%d want=2", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].NetworkID != "net-1b" {
		t.Fatalf("expected upserted run-1 first: got=%+v", entries[0])
	}
}

func TestListRunIndexMissingFile(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list missing index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index: got=%d entries", len(entries))
	}
}

func TestListRunIndexEqualTimestampsPrefersLaterAppended(t *testing.T) {
	baseDir := t.TempDir()
	stamp := "2026-02-10T10:00:00Z"

	for _, id := range []string{"run-a", "run-b"} {
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: stamp}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if entries[0].RunID != "run-b" {
		t.Fatalf("expected later appended entry first: got=%s", entries[0].RunID)
	}
}
