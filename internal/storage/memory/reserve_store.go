// Package memory provides in-memory store implementations used by tests and
// by runs that do not need durable reserve state.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// ReserveStore is an in-memory implementation of storage.ReserveStore.
type ReserveStore struct {
	mu   sync.RWMutex
	data map[string]model.Reserve
}

// NewReserveStore creates an empty reserve store.
func NewReserveStore() *ReserveStore {
	return &ReserveStore{data: make(map[string]model.Reserve)}
}

var _ storage.ReserveStore = (*ReserveStore)(nil)

func (s *ReserveStore) Upsert(_ context.Context, reserve model.Reserve) error {
	s.mu.Lock()
	s.data[assetKey(reserve.UnderlyingAsset)] = reserve
	s.mu.Unlock()
	return nil
}

func (s *ReserveStore) Get(_ context.Context, asset string) (model.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reserve, ok := s.data[assetKey(asset)]
	if !ok {
		return model.Reserve{}, storage.ErrNotFound
	}
	return reserve, nil
}

func (s *ReserveStore) All(_ context.Context) ([]model.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Reserve, 0, len(s.data))
	for _, reserve := range s.data {
		out = append(out, reserve)
	}
	sort.Slice(out, func(i, j int) bool {
		return assetKey(out[i].UnderlyingAsset) < assetKey(out[j].UnderlyingAsset)
	})
	return out, nil
}

func assetKey(asset string) string {
	return strings.ToLower(asset)
}
