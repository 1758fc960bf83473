//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"dihedra/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		DELETE FROM splits;
		DELETE FROM networks;
		DELETE FROM training_summaries;
		DELETE FROM ablation_runs;
	`)
	return err
}

func (s *SQLiteStore) SaveSplit(ctx context.Context, split model.Split) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSplit(split)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO splits (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, split.ID, split.SchemaVersion, split.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetSplit(ctx context.Context, id string) (model.Split, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Split{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM splits WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Split{}, false, nil
		}
		return model.Split{}, false, err
	}

	split, err := DecodeSplit(payload)
	if err != nil {
		return model.Split{}, false, fmt.Errorf("decode split %s: %w", id, err)
	}
	return split, true, nil
}

func (s *SQLiteStore) SaveNetwork(ctx context.Context, network model.Network) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeNetwork(network)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO networks (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, network.ID, network.SchemaVersion, network.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetNetwork(ctx context.Context, id string) (model.Network, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Network{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM networks WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Network{}, false, nil
		}
		return model.Network{}, false, err
	}

	network, err := DecodeNetwork(payload)
	if err != nil {
		return model.Network{}, false, fmt.Errorf("decode network %s: %w", id, err)
	}
	return network, true, nil
}

func (s *SQLiteStore) SaveTrainingSummary(ctx context.Context, summary model.TrainingSummary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTrainingSummary(summary)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO training_summaries (network_id, payload)
		VALUES (?, ?)
		ON CONFLICT(network_id) DO UPDATE SET
			payload = excluded.payload
	`, summary.NetworkID, payload)
	return err
}

func (s *SQLiteStore) GetTrainingSummary(ctx context.Context, networkID string) (model.TrainingSummary, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.TrainingSummary{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM training_summaries WHERE network_id = ?`, networkID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TrainingSummary{}, false, nil
		}
		return model.TrainingSummary{}, false, err
	}

	summary, err := DecodeTrainingSummary(payload)
	if err != nil {
		return model.TrainingSummary{}, false, fmt.Errorf("decode training summary %s: %w", networkID, err)
	}
	return summary, true, nil
}

func (s *SQLiteStore) SaveAblationRun(ctx context.Context, run model.AblationRun) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeAblationRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO ablation_runs (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, run.RunID, payload)
	return err
}

func (s *SQLiteStore) GetAblationRun(ctx context.Context, runID string) (model.AblationRun, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.AblationRun{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM ablation_runs WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AblationRun{}, false, nil
		}
		return model.AblationRun{}, false, err
	}

	run, err := DecodeAblationRun(payload)
	if err != nil {
		return model.AblationRun{}, false, fmt.Errorf("decode ablation run %s: %w", runID, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS splits (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS networks (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS training_summaries (
			network_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ablation_runs (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
