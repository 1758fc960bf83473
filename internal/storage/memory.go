package storage

import (
	"context"
	"errors"
	"sync"

	"dihedra/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	splits      map[string]model.Split
	networks    map[string]model.Network
	summaries   map[string]model.TrainingSummary
	ablations   map[string]model.AblationRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.splits = make(map[string]model.Split)
	s.networks = make(map[string]model.Network)
	s.summaries = make(map[string]model.TrainingSummary)
	s.ablations = make(map[string]model.AblationRun)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveSplit(_ context.Context, split model.Split) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.splits[split.ID] = split
	return nil
}

func (s *MemoryStore) GetSplit(_ context.Context, id string) (model.Split, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	split, ok := s.splits[id]
	return split, ok, nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, network model.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.networks[network.ID] = network
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (model.Network, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	network, ok := s.networks[id]
	return network, ok, nil
}

func (s *MemoryStore) SaveTrainingSummary(_ context.Context, summary model.TrainingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.summaries[summary.NetworkID] = summary
	return nil
}

func (s *MemoryStore) GetTrainingSummary(_ context.Context, networkID string) (model.TrainingSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[networkID]
	return summary, ok, nil
}

func (s *MemoryStore) SaveAblationRun(_ context.Context, run model.AblationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.ablations[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetAblationRun(_ context.Context, runID string) (model.AblationRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.ablations[runID]
	return run, ok, nil
}

func (s *MemoryStore) ready() error {
	if !s.initialized {
		return errors.New("store is not initialized")
	}
	return nil
}
