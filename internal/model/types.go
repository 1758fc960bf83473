package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Split holds the encoded train/test arrays produced by the dataset
// splitter, persisted so later training runs can skip re-encoding.
type Split struct {
	VersionedRecord
	ID           string      `json:"id"`
	AngleCount   int         `json:"angle_count"`
	FeatureWidth int         `json:"feature_width"`
	TestFraction float64     `json:"test_fraction"`
	Seed         int64       `json:"seed"`
	XTrain       [][]float64 `json:"x_train"`
	XTest        [][]float64 `json:"x_test"`
	YTrain       []int       `json:"y_train"`
	YTest        []int       `json:"y_test"`
}

// Network is a persisted feed-forward classifier: one hidden layer
// with a rectifying activation, two logistic output units.
type Network struct {
	VersionedRecord
	ID           string      `json:"id"`
	InputWidth   int         `json:"input_width"`
	HiddenWidth  int         `json:"hidden_width"`
	OutputWidth  int         `json:"output_width"`
	Seed         int64       `json:"seed"`
	HiddenWeight [][]float64 `json:"hidden_weight"`
	HiddenBias   []float64   `json:"hidden_bias"`
	OutputWeight [][]float64 `json:"output_weight"`
	OutputBias   []float64   `json:"output_bias"`
}

// TrainingSummary records how a network was produced.
type TrainingSummary struct {
	VersionedRecord
	NetworkID    string    `json:"network_id"`
	SplitID      string    `json:"split_id"`
	Epochs       int       `json:"epochs"`
	LearningRate float64   `json:"learning_rate"`
	FinalLoss    float64   `json:"final_loss"`
	LossHistory  []float64 `json:"loss_history"`
}

// ResidueAccuracy is one ablation result: test-set accuracy after the
// residue's feature columns were masked to their column means.
type ResidueAccuracy struct {
	Residue  string  `json:"residue"`
	Accuracy float64 `json:"accuracy"`
}

// AblationRun is the persisted outcome of one leave-one-residue-out pass.
// ByResidue is sorted ascending by accuracy: the residues whose removal
// hurts the classifier most come first.
type AblationRun struct {
	VersionedRecord
	RunID            string            `json:"run_id"`
	SplitID          string            `json:"split_id"`
	NetworkID        string            `json:"network_id"`
	BaselineAccuracy float64           `json:"baseline_accuracy"`
	ByResidue        []ResidueAccuracy `json:"by_residue"`
}
