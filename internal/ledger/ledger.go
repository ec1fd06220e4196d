// Package ledger maintains per-(user, reserve) scaled balances derived from
// protocol events.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"lendingScope/internal/interest"
	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// Leg selects which side of a position a delta applies to.
type Leg int

const (
	SupplyLeg Leg = iota
	DebtLeg
)

func (l Leg) String() string {
	if l == SupplyLeg {
		return "supply"
	}
	return "debt"
}

// ErrZeroIndex marks a data-integrity violation: a live reserve must never
// report a zero normalization index.
var ErrZeroIndex = errors.New("zero normalization index")

// ScaleAmount converts a raw token amount into scaled units using the
// reserve index observed at event time: RAY * raw / index.
func ScaleAmount(raw, index *big.Int) (*big.Int, error) {
	if index == nil || index.Sign() == 0 {
		return nil, ErrZeroIndex
	}
	out := new(big.Int).Mul(interest.RAY, raw)
	return out.Quo(out, index), nil
}

// BalanceLedger applies scaled balance deltas and collateral flags to the
// user reserve store, enforcing the zero-floor and row-pruning rules.
type BalanceLedger struct {
	users storage.UserReserveStore
}

// New creates a ledger over the given store.
func New(users storage.UserReserveStore) *BalanceLedger {
	return &BalanceLedger{users: users}
}

// ApplyDelta adds a signed scaled amount to one leg of the (user, asset) row.
//
// A result below zero clamps to zero; real event streams should never produce
// that, but a replayed or truncated history must not crash the ledger. When
// both legs are zero after the update the row is deleted, and the user record
// with it when it was the user's last row. A missing row is created with the
// opposite leg at zero and the affected leg at the delta's absolute value.
func (l *BalanceLedger) ApplyDelta(ctx context.Context, user, asset string, delta *big.Int, leg Leg) error {
	row, err := l.users.Get(ctx, user, asset)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load user reserve: %w", err)
		}
		row = model.UserReserve{
			User:                user,
			ReserveAsset:        asset,
			ScaledSupplyBalance: big.NewInt(0),
			ScaledVariableDebt:  big.NewInt(0),
		}
		if leg == SupplyLeg {
			row.ScaledSupplyBalance = new(big.Int).Abs(delta)
		} else {
			row.ScaledVariableDebt = new(big.Int).Abs(delta)
		}
		return l.users.Upsert(ctx, row)
	}

	balance := row.ScaledSupplyBalance
	if leg == DebtLeg {
		balance = row.ScaledVariableDebt
	}
	updated := new(big.Int).Add(balance, delta)
	if updated.Sign() < 0 {
		updated.SetInt64(0)
	}
	if leg == SupplyLeg {
		row.ScaledSupplyBalance = updated
	} else {
		row.ScaledVariableDebt = updated
	}

	if row.ScaledSupplyBalance.Sign() == 0 && row.ScaledVariableDebt.Sign() == 0 {
		return l.prune(ctx, user, asset)
	}
	return l.users.Upsert(ctx, row)
}

// SetCollateralFlag records the user's collateral election for a reserve,
// creating an empty row when none exists yet.
func (l *BalanceLedger) SetCollateralFlag(ctx context.Context, user, asset string, enabled bool) error {
	row, err := l.users.Get(ctx, user, asset)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load user reserve: %w", err)
		}
		row = model.UserReserve{
			User:                user,
			ReserveAsset:        asset,
			ScaledSupplyBalance: big.NewInt(0),
			ScaledVariableDebt:  big.NewInt(0),
		}
	}
	row.UsageAsCollateralEnabled = enabled
	return l.users.Upsert(ctx, row)
}

func (l *BalanceLedger) prune(ctx context.Context, user, asset string) error {
	count, err := l.users.CountByUser(ctx, user)
	if err != nil {
		return fmt.Errorf("count user reserves: %w", err)
	}
	if err := l.users.Delete(ctx, user, asset); err != nil {
		return fmt.Errorf("delete user reserve: %w", err)
	}
	if count <= 1 {
		if err := l.users.DeleteUser(ctx, user); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}
	return nil
}
