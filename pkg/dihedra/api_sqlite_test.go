//go:build sqlite

package dihedra

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

// A reset must work as the first operation on a fresh client, the way
// the CLI issues it: one process, no prior init.
func TestClientResetSQLiteWithoutPriorInit(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	newSQLiteClient := func() *Client {
		client, err := New(Options{
			StoreKind:  "sqlite",
			DBPath:     filepath.Join(base, "dihedra.db"),
			ReportsDir: filepath.Join(base, "reports"),
			ExportsDir: filepath.Join(base, "exports"),
		})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		t.Cleanup(func() {
			_ = client.Close()
		})
		return client
	}

	if err := newSQLiteClient().Reset(ctx); err != nil {
		t.Fatalf("reset on a fresh client: %v", err)
	}

	stateAPath := filepath.Join(base, "state_a.csv")
	stateBPath := filepath.Join(base, "state_b.csv")
	writeAnglesCSV(t, stateAPath, stateAngles(math.Pi/2, 40))
	writeAnglesCSV(t, stateBPath, stateAngles(-math.Pi/2, 40))

	seeded := newSQLiteClient()
	if _, err := seeded.Split(ctx, SplitRequest{
		StateAPath: stateAPath,
		StateBPath: stateBPath,
		AngleCount: 2,
		Seed:       7,
		SplitID:    "split-reset",
		HasHeader:  true,
	}); err != nil {
		t.Fatalf("split after reset: %v", err)
	}

	// A second fresh client resetting must clear the persisted split.
	if err := newSQLiteClient().Reset(ctx); err != nil {
		t.Fatalf("reset with existing data: %v", err)
	}
	if _, err := newSQLiteClient().Train(ctx, TrainRequest{SplitID: "split-reset"}); err == nil {
		t.Fatal("expected split to be gone after reset")
	}
}
