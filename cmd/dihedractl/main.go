package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"dihedra/internal/model"
	"dihedra/internal/storage"
	api "dihedra/pkg/dihedra"
)

const (
	reportsDir = "reports"
	exportsDir = "exports"
	defaultDB  = "dihedra.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "split":
		return runSplit(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "ablate":
		return runAblate(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func storeFlags(fs *flag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", defaultDB, "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		ReportsDir: reportsDir,
		ExportsDir: exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runSplit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	stateA := fs.String("state-a", "", "CSV with state A snapshot angles")
	stateB := fs.String("state-b", "", "CSV with state B snapshot angles")
	angles := fs.Int("angles", 0, "dihedral angles per snapshot")
	fraction := fs.Float64("test-fraction", 0.25, "held-out test fraction")
	seed := fs.Int64("seed", 1, "rng seed")
	splitID := fs.String("split-id", "", "explicit split id (optional)")
	hasHeader := fs.Bool("has-header", true, "CSVs carry a header row")
	keepIndex := fs.Bool("keep-index", false, "keep the leading frame-index column as a feature source")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Split(ctx, api.SplitRequest{
		StateAPath:   *stateA,
		StateBPath:   *stateB,
		AngleCount:   *angles,
		TestFraction: *fraction,
		Seed:         *seed,
		SplitID:      *splitID,
		HasHeader:    *hasHeader,
		KeepIndex:    *keepIndex,
	})
	if err != nil {
		return err
	}

	fmt.Printf("split_id=%s angles=%d feature_width=%d train_rows=%d test_rows=%d test_fraction=%.4f seed=%d\n",
		summary.SplitID,
		summary.AngleCount,
		summary.FeatureWidth,
		summary.TrainRows,
		summary.TestRows,
		summary.TestFraction,
		summary.Seed,
	)
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	splitID := fs.String("split-id", "", "stored split id")
	networkID := fs.String("network-id", "", "explicit network id (optional)")
	hidden := fs.Int("hidden", 32, "hidden layer width")
	epochs := fs.Int("epochs", 200, "training epochs")
	learningRate := fs.Float64("learning-rate", 0.05, "gradient descent step size")
	seed := fs.Int64("seed", 1, "rng seed for weight init")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Train(ctx, api.TrainRequest{
		SplitID:      *splitID,
		NetworkID:    *networkID,
		HiddenWidth:  *hidden,
		Epochs:       *epochs,
		LearningRate: *learningRate,
		Seed:         *seed,
		Progress: func(epoch int, loss float64) {
			fmt.Printf("epoch=%d loss=%.6f\n", epoch, loss)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("network_id=%s split_id=%s epochs=%d final_loss=%.6f\n",
		summary.NetworkID,
		summary.SplitID,
		summary.Epochs,
		summary.FinalLoss,
	)
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	splitID := fs.String("split-id", "", "stored split id")
	networkID := fs.String("network-id", "", "stored network id")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Evaluate(ctx, api.EvaluateRequest{SplitID: *splitID, NetworkID: *networkID})
	if err != nil {
		return err
	}

	fmt.Printf("split_id=%s network_id=%s test_rows=%d accuracy=%.6f\n",
		summary.SplitID,
		summary.NetworkID,
		summary.TestRows,
		summary.Accuracy,
	)
	return nil
}

func runAblate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ablate", flag.ContinueOnError)
	splitID := fs.String("split-id", "", "stored split id")
	networkID := fs.String("network-id", "", "stored network id")
	residueMap := fs.String("residue-map", "", "JSON residue to feature-column map")
	top := fs.Int("top", 11, "residues to keep in the top table")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Ablate(ctx, api.AblateRequest{
		SplitID:        *splitID,
		NetworkID:      *networkID,
		ResidueMapPath: *residueMap,
		TopK:           *top,
		RunID:          *runID,
	})
	if err != nil {
		return err
	}

	printAblation(summary.RunID, summary.BaselineAccuracy, summary.TopResidues, summary.ArtifactsDir)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	stateA := fs.String("state-a", "", "CSV with state A snapshot angles")
	stateB := fs.String("state-b", "", "CSV with state B snapshot angles")
	angles := fs.Int("angles", 0, "dihedral angles per snapshot")
	residueMap := fs.String("residue-map", "", "JSON residue to feature-column map")
	fraction := fs.Float64("test-fraction", 0.25, "held-out test fraction")
	hidden := fs.Int("hidden", 32, "hidden layer width")
	epochs := fs.Int("epochs", 200, "training epochs")
	learningRate := fs.Float64("learning-rate", 0.05, "gradient descent step size")
	seed := fs.Int64("seed", 1, "rng seed")
	top := fs.Int("top", 11, "residues to keep in the top table")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	hasHeader := fs.Bool("has-header", true, "CSVs carry a header row")
	keepIndex := fs.Bool("keep-index", false, "keep the leading frame-index column as a feature source")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, api.RunRequest{
		StateAPath:     *stateA,
		StateBPath:     *stateB,
		AngleCount:     *angles,
		ResidueMapPath: *residueMap,
		TestFraction:   *fraction,
		HiddenWidth:    *hidden,
		Epochs:         *epochs,
		LearningRate:   *learningRate,
		Seed:           *seed,
		TopK:           *top,
		RunID:          *runID,
		HasHeader:      *hasHeader,
		KeepIndex:      *keepIndex,
		Progress: func(epoch int, loss float64) {
			fmt.Printf("epoch=%d loss=%.6f\n", epoch, loss)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s split_id=%s network_id=%s final_loss=%.6f\n",
		summary.RunID,
		summary.SplitID,
		summary.NetworkID,
		summary.FinalLoss,
	)
	printAblation(summary.RunID, summary.BaselineAccuracy, summary.TopResidues, summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s split_id=%s network_id=%s residues=%d baseline_accuracy=%.6f top_residue=%s\n",
			item.RunID,
			item.CreatedAtUTC,
			item.SplitID,
			item.NetworkID,
			item.ResidueCount,
			item.BaselineAccuracy,
			item.TopResidue,
		)
	}
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	runID := fs.String("run-id", "", "stored run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	top := fs.Int("top", 11, "residues to print")
	jsonOut := fs.Bool("json", false, "emit report as JSON")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, err := client.Report(ctx, api.ReportRequest{RunID: *runID, Latest: *latest, TopK: *top})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("run_id=%s split_id=%s network_id=%s baseline_accuracy=%.6f\n",
		report.RunID,
		report.SplitID,
		report.NetworkID,
		report.BaselineAccuracy,
	)
	for i, entry := range report.TopResidues {
		fmt.Printf("rank=%d residue=%s masked_accuracy=%.6f accuracy_drop=%.6f\n",
			i+1,
			entry.Residue,
			entry.Accuracy,
			report.BaselineAccuracy-entry.Accuracy,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "stored run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	outDir := fs.String("out", exportsDir, "destination directory")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

func printAblation(runID string, baseline float64, top []model.ResidueAccuracy, artifactsDir string) {
	fmt.Printf("run_id=%s baseline_accuracy=%.6f artifacts=%s\n", runID, baseline, artifactsDir)
	for i, entry := range top {
		fmt.Printf("rank=%d residue=%s masked_accuracy=%.6f accuracy_drop=%.6f\n",
			i+1,
			entry.Residue,
			entry.Accuracy,
			baseline-entry.Accuracy,
		)
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: dihedractl <init|reset|split|train|evaluate|ablate|run|runs|report|export> [flags]", msg)
}
