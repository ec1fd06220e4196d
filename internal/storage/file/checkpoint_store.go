// Package file provides a JSON-file checkpoint store for running without
// Postgres.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

type checkpointRecord struct {
	Block     uint64 `json:"block"`
	LogIndex  uint64 `json:"log_index"`
	UpdatedAt string `json:"updated_at"`
}

// CheckpointStore persists the sync cursor to a local JSON file. Writes go
// through a temp file plus rename so a crash mid-write never leaves a
// truncated checkpoint behind.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates a store writing to path.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

func (s *CheckpointStore) Load(_ context.Context) (model.Checkpoint, bool, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Checkpoint{}, false, nil
		}
		return model.Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return model.Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var rec checkpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	return model.Checkpoint{Block: rec.Block, LogIndex: rec.LogIndex}, true, nil
}

func (s *CheckpointStore) Save(_ context.Context, cp model.Checkpoint) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	rec := checkpointRecord{
		Block:     cp.Block,
		LogIndex:  cp.LogIndex,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
