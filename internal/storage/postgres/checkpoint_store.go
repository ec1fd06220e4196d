package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore on a single-row table.
type CheckpointStore struct {
	db   *DB
	name string
}

// NewCheckpointStore creates a checkpoint store; name distinguishes
// independent deployments sharing one database.
func NewCheckpointStore(db *DB, name string) *CheckpointStore {
	if name == "" {
		name = "ingest"
	}
	return &CheckpointStore{db: db, name: name}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

func (s *CheckpointStore) Load(ctx context.Context) (model.Checkpoint, bool, error) {
	var block, logIndex int64
	row := s.db.pool.QueryRow(ctx, `
		SELECT last_block, last_log_index FROM sync_checkpoints WHERE name = $1
	`, s.name)
	if err := row.Scan(&block, &logIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Checkpoint{}, false, nil
		}
		return model.Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return model.Checkpoint{Block: uint64(block), LogIndex: uint64(logIndex)}, true, nil
}

func (s *CheckpointStore) Save(ctx context.Context, cp model.Checkpoint) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO sync_checkpoints (name, last_block, last_log_index, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block,
		    last_log_index = EXCLUDED.last_log_index,
		    updated_at = now()
	`, s.name, int64(cp.Block), int64(cp.LogIndex))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
