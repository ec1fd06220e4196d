package memory

import (
	"context"
	"sync"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu  sync.Mutex
	cp  model.Checkpoint
	set bool
}

// NewCheckpointStore creates an empty checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

func (s *CheckpointStore) Load(_ context.Context) (model.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cp, s.set, nil
}

func (s *CheckpointStore) Save(_ context.Context, cp model.Checkpoint) error {
	s.mu.Lock()
	s.cp = cp
	s.set = true
	s.mu.Unlock()
	return nil
}
