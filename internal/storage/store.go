package storage

import (
	"context"

	"dihedra/internal/model"
)

// Store defines persistence for the analysis pipeline's intermediate
// artifacts: encoded splits, trained networks, and ablation runs.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveSplit(ctx context.Context, split model.Split) error
	GetSplit(ctx context.Context, id string) (model.Split, bool, error)
	SaveNetwork(ctx context.Context, network model.Network) error
	GetNetwork(ctx context.Context, id string) (model.Network, bool, error)
	SaveTrainingSummary(ctx context.Context, summary model.TrainingSummary) error
	GetTrainingSummary(ctx context.Context, networkID string) (model.TrainingSummary, bool, error)
	SaveAblationRun(ctx context.Context, run model.AblationRun) error
	GetAblationRun(ctx context.Context, runID string) (model.AblationRun, bool, error)
}
