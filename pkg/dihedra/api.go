// Package dihedra exposes the dihedral-angle analysis pipeline as a
// library: encode per-state snapshot CSVs, split them, train a
// two-state classifier, and rank residues by ablation.
package dihedra

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"dihedra/internal/ablate"
	"dihedra/internal/dataset"
	"dihedra/internal/encode"
	"dihedra/internal/eval"
	"dihedra/internal/model"
	"dihedra/internal/nn"
	"dihedra/internal/stats"
	"dihedra/internal/storage"
	"dihedra/internal/train"
)

const (
	defaultDBPath     = "dihedra.db"
	defaultReportsDir = "reports"
	defaultExportsDir = "exports"

	defaultHiddenWidth  = 32
	defaultEpochs       = 200
	defaultLearningRate = 0.05
	defaultSeed         = 1
)

type Options struct {
	StoreKind  string
	DBPath     string
	ReportsDir string
	ExportsDir string
}

type Client struct {
	store       storage.Store
	initialized bool

	reportsDir string
	exportsDir string
}

type SplitRequest struct {
	StateAPath   string
	StateBPath   string
	AngleCount   int
	TestFraction float64
	Seed         int64
	SplitID      string
	HasHeader    bool
	KeepIndex    bool
}

type SplitSummary struct {
	SplitID      string
	AngleCount   int
	FeatureWidth int
	TrainRows    int
	TestRows     int
	TestFraction float64
	Seed         int64
}

type TrainRequest struct {
	SplitID      string
	NetworkID    string
	HiddenWidth  int
	Epochs       int
	LearningRate float64
	Seed         int64
	Progress     func(epoch int, loss float64)
}

type TrainSummary struct {
	NetworkID   string
	SplitID     string
	Epochs      int
	FinalLoss   float64
	LossHistory []float64
}

type EvaluateRequest struct {
	SplitID   string
	NetworkID string
}

type EvaluateSummary struct {
	Accuracy  float64
	TestRows  int
	SplitID   string
	NetworkID string
}

type AblateRequest struct {
	SplitID        string
	NetworkID      string
	ResidueMapPath string
	TopK           int
	RunID          string
}

type AblateSummary struct {
	RunID            string
	BaselineAccuracy float64
	ByResidue        []model.ResidueAccuracy
	TopResidues      []model.ResidueAccuracy
	ArtifactsDir     string
}

type RunRequest struct {
	StateAPath     string
	StateBPath     string
	AngleCount     int
	ResidueMapPath string
	TestFraction   float64
	HiddenWidth    int
	Epochs         int
	LearningRate   float64
	Seed           int64
	TopK           int
	RunID          string
	HasHeader      bool
	KeepIndex      bool
	Progress       func(epoch int, loss float64)
}

type RunSummary struct {
	RunID            string
	SplitID          string
	NetworkID        string
	FinalLoss        float64
	BaselineAccuracy float64
	TopResidues      []model.ResidueAccuracy
	ArtifactsDir     string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	SplitID          string
	NetworkID        string
	ResidueCount     int
	BaselineAccuracy float64
	TopResidue       string
}

type ReportRequest struct {
	RunID  string
	Latest bool
	TopK   int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	reportsDir := opts.ReportsDir
	if reportsDir == "" {
		reportsDir = defaultReportsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		reportsDir: reportsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	// The sqlite backend cannot clear tables before Init opened the
	// database, and every CLI invocation starts from a fresh client.
	if err := c.ensureInit(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// Split loads the two per-state angle CSVs, encodes every snapshot,
// shuffles into train/test, and persists the result under a split id.
func (c *Client) Split(ctx context.Context, req SplitRequest) (SplitSummary, error) {
	if req.StateAPath == "" || req.StateBPath == "" {
		return SplitSummary{}, errors.New("both state CSV paths are required")
	}
	if req.AngleCount <= 0 {
		return SplitSummary{}, errors.New("angle count must be > 0")
	}
	if req.TestFraction == 0 {
		req.TestFraction = dataset.DefaultTestFraction
	}
	if req.Seed == 0 {
		req.Seed = defaultSeed
	}
	if req.SplitID == "" {
		req.SplitID = fmt.Sprintf("split-%d-%d", req.Seed, time.Now().UTC().Unix())
	}
	if err := c.ensureInit(ctx); err != nil {
		return SplitSummary{}, err
	}

	loadOpts := dataset.LoadOptions{HasHeader: req.HasHeader, DropIndexColumn: !req.KeepIndex}

	stateA, err := dataset.LoadAnglesFile(req.StateAPath, loadOpts)
	if err != nil {
		return SplitSummary{}, fmt.Errorf("load state A: %w", err)
	}
	stateB, err := dataset.LoadAnglesFile(req.StateBPath, loadOpts)
	if err != nil {
		return SplitSummary{}, fmt.Errorf("load state B: %w", err)
	}

	featuresA, labelsA, err := encode.Snapshots(stateA, req.AngleCount, 0)
	if err != nil {
		return SplitSummary{}, fmt.Errorf("encode state A: %w", err)
	}
	featuresB, labelsB, err := encode.Snapshots(stateB, req.AngleCount, 1)
	if err != nil {
		return SplitSummary{}, fmt.Errorf("encode state B: %w", err)
	}

	features := append(featuresA, featuresB...)
	labels := append(labelsA, labelsB...)

	result, err := dataset.Split(features, labels, req.TestFraction, req.Seed)
	if err != nil {
		return SplitSummary{}, fmt.Errorf("split: %w", err)
	}

	split := model.Split{
		VersionedRecord: storage.Stamp(),
		ID:              req.SplitID,
		AngleCount:      req.AngleCount,
		FeatureWidth:    encode.Width(req.AngleCount),
		TestFraction:    req.TestFraction,
		Seed:            req.Seed,
		XTrain:          result.XTrain,
		XTest:           result.XTest,
		YTrain:          result.YTrain,
		YTest:           result.YTest,
	}
	if err := c.store.SaveSplit(ctx, split); err != nil {
		return SplitSummary{}, fmt.Errorf("save split: %w", err)
	}

	return SplitSummary{
		SplitID:      split.ID,
		AngleCount:   split.AngleCount,
		FeatureWidth: split.FeatureWidth,
		TrainRows:    len(split.XTrain),
		TestRows:     len(split.XTest),
		TestFraction: split.TestFraction,
		Seed:         split.Seed,
	}, nil
}

// Train fits a fresh classifier on a stored split and persists the
// resulting network plus its training summary.
func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.SplitID == "" {
		return TrainSummary{}, errors.New("split id is required")
	}
	if req.HiddenWidth <= 0 {
		req.HiddenWidth = defaultHiddenWidth
	}
	if req.Epochs <= 0 {
		req.Epochs = defaultEpochs
	}
	if req.LearningRate <= 0 {
		req.LearningRate = defaultLearningRate
	}
	if req.Seed == 0 {
		req.Seed = defaultSeed
	}
	if req.NetworkID == "" {
		req.NetworkID = fmt.Sprintf("net-%d-%d", req.Seed, time.Now().UTC().Unix())
	}
	if err := c.ensureInit(ctx); err != nil {
		return TrainSummary{}, err
	}

	split, err := c.getSplit(ctx, req.SplitID)
	if err != nil {
		return TrainSummary{}, err
	}

	net, err := nn.New(split.FeatureWidth, req.HiddenWidth, req.Seed)
	if err != nil {
		return TrainSummary{}, fmt.Errorf("build network: %w", err)
	}

	history, err := train.Run(ctx, net, split.XTrain, split.YTrain, train.Config{
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		Progress:     req.Progress,
	})
	if err != nil {
		return TrainSummary{}, fmt.Errorf("train: %w", err)
	}

	record := net.ToModel(req.NetworkID)
	record.VersionedRecord = storage.Stamp()
	if err := c.store.SaveNetwork(ctx, record); err != nil {
		return TrainSummary{}, fmt.Errorf("save network: %w", err)
	}

	summary := model.TrainingSummary{
		VersionedRecord: storage.Stamp(),
		NetworkID:       req.NetworkID,
		SplitID:         req.SplitID,
		Epochs:          req.Epochs,
		LearningRate:    req.LearningRate,
		FinalLoss:       history[len(history)-1],
		LossHistory:     history,
	}
	if err := c.store.SaveTrainingSummary(ctx, summary); err != nil {
		return TrainSummary{}, fmt.Errorf("save training summary: %w", err)
	}

	return TrainSummary{
		NetworkID:   req.NetworkID,
		SplitID:     req.SplitID,
		Epochs:      req.Epochs,
		FinalLoss:   summary.FinalLoss,
		LossHistory: history,
	}, nil
}

// Evaluate reports a stored network's accuracy on a stored split's
// test set.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.SplitID == "" || req.NetworkID == "" {
		return EvaluateSummary{}, errors.New("split id and network id are required")
	}
	if err := c.ensureInit(ctx); err != nil {
		return EvaluateSummary{}, err
	}

	split, err := c.getSplit(ctx, req.SplitID)
	if err != nil {
		return EvaluateSummary{}, err
	}
	net, err := c.getNetwork(ctx, req.NetworkID)
	if err != nil {
		return EvaluateSummary{}, err
	}

	accuracy, err := eval.Accuracy(net, split.XTest, split.YTest)
	if err != nil {
		return EvaluateSummary{}, fmt.Errorf("evaluate: %w", err)
	}

	return EvaluateSummary{
		Accuracy:  accuracy,
		TestRows:  len(split.XTest),
		SplitID:   req.SplitID,
		NetworkID: req.NetworkID,
	}, nil
}

// Ablate runs the leave-one-residue-out pass on a stored split and
// network, persists the run, and writes its report artifacts.
func (c *Client) Ablate(ctx context.Context, req AblateRequest) (AblateSummary, error) {
	if req.SplitID == "" || req.NetworkID == "" {
		return AblateSummary{}, errors.New("split id and network id are required")
	}
	if req.ResidueMapPath == "" {
		return AblateSummary{}, errors.New("residue map path is required")
	}
	if req.TopK <= 0 {
		req.TopK = ablate.DefaultTopK
	}
	if req.RunID == "" {
		req.RunID = fmt.Sprintf("run-%d", time.Now().UTC().UnixNano())
	}
	if err := c.ensureInit(ctx); err != nil {
		return AblateSummary{}, err
	}

	split, err := c.getSplit(ctx, req.SplitID)
	if err != nil {
		return AblateSummary{}, err
	}
	net, err := c.getNetwork(ctx, req.NetworkID)
	if err != nil {
		return AblateSummary{}, err
	}

	residues, err := dataset.LoadResidueMapFile(req.ResidueMapPath, split.FeatureWidth)
	if err != nil {
		return AblateSummary{}, fmt.Errorf("load residue map: %w", err)
	}

	result, err := ablate.Run(ctx, net, split.XTest, split.YTest, residues)
	if err != nil {
		return AblateSummary{}, fmt.Errorf("ablate: %w", err)
	}

	run := model.AblationRun{
		VersionedRecord:  storage.Stamp(),
		RunID:            req.RunID,
		SplitID:          req.SplitID,
		NetworkID:        req.NetworkID,
		BaselineAccuracy: result.Baseline,
		ByResidue:        result.ByResidue,
	}
	if err := c.store.SaveAblationRun(ctx, run); err != nil {
		return AblateSummary{}, fmt.Errorf("save ablation run: %w", err)
	}

	top := result.TopK(req.TopK)
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	runDir, err := stats.WriteRunArtifacts(c.reportsDir, stats.AblationReport{
		RunID:            req.RunID,
		SplitID:          req.SplitID,
		NetworkID:        req.NetworkID,
		BaselineAccuracy: result.Baseline,
		ByResidue:        result.ByResidue,
		TopResidues:      top,
		CreatedAtUTC:     createdAt,
	})
	if err != nil {
		return AblateSummary{}, fmt.Errorf("write run artifacts: %w", err)
	}

	topResidue := ""
	if len(result.ByResidue) > 0 {
		topResidue = result.ByResidue[0].Residue
	}
	if err := stats.AppendRunIndex(c.reportsDir, stats.RunIndexEntry{
		RunID:            req.RunID,
		SplitID:          req.SplitID,
		NetworkID:        req.NetworkID,
		ResidueCount:     residues.Len(),
		BaselineAccuracy: result.Baseline,
		TopResidue:       topResidue,
		CreatedAtUTC:     createdAt,
	}); err != nil {
		return AblateSummary{}, fmt.Errorf("append run index: %w", err)
	}

	return AblateSummary{
		RunID:            req.RunID,
		BaselineAccuracy: result.Baseline,
		ByResidue:        result.ByResidue,
		TopResidues:      top,
		ArtifactsDir:     filepath.Clean(runDir),
	}, nil
}

// Run is the end-to-end pipeline: encode, split, train, evaluate, and
// ablate in one call.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.ResidueMapPath == "" {
		return RunSummary{}, errors.New("residue map path is required")
	}
	if req.Seed == 0 {
		req.Seed = defaultSeed
	}
	if req.RunID == "" {
		req.RunID = fmt.Sprintf("run-%d-%d", req.Seed, time.Now().UTC().Unix())
	}

	splitSummary, err := c.Split(ctx, SplitRequest{
		StateAPath:   req.StateAPath,
		StateBPath:   req.StateBPath,
		AngleCount:   req.AngleCount,
		TestFraction: req.TestFraction,
		Seed:         req.Seed,
		SplitID:      req.RunID + "-split",
		HasHeader:    req.HasHeader,
		KeepIndex:    req.KeepIndex,
	})
	if err != nil {
		return RunSummary{}, err
	}

	trainSummary, err := c.Train(ctx, TrainRequest{
		SplitID:      splitSummary.SplitID,
		NetworkID:    req.RunID + "-net",
		HiddenWidth:  req.HiddenWidth,
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		Seed:         req.Seed,
		Progress:     req.Progress,
	})
	if err != nil {
		return RunSummary{}, err
	}

	ablateSummary, err := c.Ablate(ctx, AblateRequest{
		SplitID:        splitSummary.SplitID,
		NetworkID:      trainSummary.NetworkID,
		ResidueMapPath: req.ResidueMapPath,
		TopK:           req.TopK,
		RunID:          req.RunID,
	})
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            req.RunID,
		SplitID:          splitSummary.SplitID,
		NetworkID:        trainSummary.NetworkID,
		FinalLoss:        trainSummary.FinalLoss,
		BaselineAccuracy: ablateSummary.BaselineAccuracy,
		TopResidues:      ablateSummary.TopResidues,
		ArtifactsDir:     ablateSummary.ArtifactsDir,
	}, nil
}

// Runs lists past ablation runs, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.reportsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			SplitID:          e.SplitID,
			NetworkID:        e.NetworkID,
			ResidueCount:     e.ResidueCount,
			BaselineAccuracy: e.BaselineAccuracy,
			TopResidue:       e.TopResidue,
		})
	}
	return out, nil
}

// Report returns a stored ablation report, trimmed to TopK residues.
// Falls back to the storage record when the report file is gone.
func (c *Client) Report(ctx context.Context, req ReportRequest) (stats.AblationReport, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return stats.AblationReport{}, err
	}
	if req.TopK <= 0 {
		req.TopK = ablate.DefaultTopK
	}

	report, found, err := stats.ReadAblationReport(c.reportsDir, runID)
	if err != nil {
		return stats.AblationReport{}, err
	}
	if !found {
		if err := c.ensureInit(ctx); err != nil {
			return stats.AblationReport{}, err
		}
		run, ok, err := c.store.GetAblationRun(ctx, runID)
		if err != nil {
			return stats.AblationReport{}, err
		}
		if !ok {
			return stats.AblationReport{}, fmt.Errorf("ablation run not found: %s", runID)
		}
		report = stats.AblationReport{
			RunID:            run.RunID,
			SplitID:          run.SplitID,
			NetworkID:        run.NetworkID,
			BaselineAccuracy: run.BaselineAccuracy,
			ByResidue:        run.ByResidue,
		}
	}

	top := req.TopK
	if top > len(report.ByResidue) {
		top = len(report.ByResidue)
	}
	report.TopResidues = append([]model.ResidueAccuracy(nil), report.ByResidue[:top]...)
	return report, nil
}

// Export copies a run's report files into OutDir.
func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.reportsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	entries, err := stats.ListRunIndex(c.reportsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) getSplit(ctx context.Context, id string) (model.Split, error) {
	split, ok, err := c.store.GetSplit(ctx, id)
	if err != nil {
		return model.Split{}, fmt.Errorf("load split: %w", err)
	}
	if !ok {
		return model.Split{}, fmt.Errorf("split not found: %s", id)
	}
	return split, nil
}

func (c *Client) getNetwork(ctx context.Context, id string) (*nn.Network, error) {
	record, ok, err := c.store.GetNetwork(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load network: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("network not found: %s", id)
	}
	net, err := nn.FromModel(record)
	if err != nil {
		return nil, fmt.Errorf("restore network: %w", err)
	}
	return net, nil
}
