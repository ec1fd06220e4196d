package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// UserReserveStore is an in-memory implementation of storage.UserReserveStore.
type UserReserveStore struct {
	mu   sync.RWMutex
	data map[string]map[string]model.UserReserve // user -> asset -> row
}

// NewUserReserveStore creates an empty user reserve store.
func NewUserReserveStore() *UserReserveStore {
	return &UserReserveStore{data: make(map[string]map[string]model.UserReserve)}
}

var _ storage.UserReserveStore = (*UserReserveStore)(nil)

func (s *UserReserveStore) Get(_ context.Context, user, asset string) (model.UserReserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.data[assetKey(user)]
	if !ok {
		return model.UserReserve{}, storage.ErrNotFound
	}
	row, ok := rows[assetKey(asset)]
	if !ok {
		return model.UserReserve{}, storage.ErrNotFound
	}
	return copyRow(row), nil
}

func (s *UserReserveStore) Upsert(_ context.Context, row model.UserReserve) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[assetKey(row.User)]
	if !ok {
		rows = make(map[string]model.UserReserve)
		s.data[assetKey(row.User)] = rows
	}
	rows[assetKey(row.ReserveAsset)] = copyRow(row)
	return nil
}

func (s *UserReserveStore) Delete(_ context.Context, user, asset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[assetKey(user)]
	if !ok {
		return nil
	}
	delete(rows, assetKey(asset))
	return nil
}

func (s *UserReserveStore) CountByUser(_ context.Context, user string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[assetKey(user)]), nil
}

func (s *UserReserveStore) DeleteUser(_ context.Context, user string) error {
	s.mu.Lock()
	delete(s.data, assetKey(user))
	s.mu.Unlock()
	return nil
}

func (s *UserReserveStore) All(_ context.Context) ([]model.UserPositions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UserPositions, 0, len(s.data))
	for user, rows := range s.data {
		positions := model.UserPositions{User: user, Reserves: make([]model.UserReserve, 0, len(rows))}
		for _, row := range rows {
			positions.Reserves = append(positions.Reserves, copyRow(row))
		}
		sort.Slice(positions.Reserves, func(i, j int) bool {
			return positions.Reserves[i].ReserveAsset < positions.Reserves[j].ReserveAsset
		})
		out = append(out, positions)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}

// copyRow clones big.Int fields so callers cannot mutate stored state.
func copyRow(row model.UserReserve) model.UserReserve {
	cloned := row
	if row.ScaledSupplyBalance != nil {
		cloned.ScaledSupplyBalance = new(big.Int).Set(row.ScaledSupplyBalance)
	}
	if row.ScaledVariableDebt != nil {
		cloned.ScaledVariableDebt = new(big.Int).Set(row.ScaledVariableDebt)
	}
	return cloned
}
