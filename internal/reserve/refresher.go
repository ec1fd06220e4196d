// Package reserve keeps the local snapshot of lending pool reserves current.
package reserve

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lendingScope/internal/interest"
	"lendingScope/internal/protocol"
	"lendingScope/internal/storage"
)

// Refresher pulls reserve configuration, rates and indices from the pool
// data provider, normalizes the indices to a reference timestamp and stores
// the result. It also primes the asset resolver so decoded token events can
// be attributed to their reserve without extra RPC calls.
type Refresher struct {
	caller            protocol.ContractCaller
	reserves          storage.ReserveStore
	resolver          *protocol.AssetResolver
	dataProvider      common.Address
	addressesProvider common.Address
	logger            *zap.Logger
}

// NewRefresher builds a refresher. The resolver may be nil when no priming
// is wanted.
func NewRefresher(
	caller protocol.ContractCaller,
	reserves storage.ReserveStore,
	resolver *protocol.AssetResolver,
	dataProvider common.Address,
	addressesProvider common.Address,
	logger *zap.Logger,
) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		caller:            caller,
		reserves:          reserves,
		resolver:          resolver,
		dataProvider:      dataProvider,
		addressesProvider: addressesProvider,
		logger:            logger,
	}
}

// Refresh fetches every reserve, normalizes its indices to currentTimestamp
// and upserts the snapshot. It returns the aToken and variable debt token
// addresses so the caller can keep its log subscription aligned with the
// reserve set.
func (r *Refresher) Refresh(ctx context.Context, currentTimestamp uint64) ([]common.Address, error) {
	fetched, err := protocol.FetchReservesData(ctx, r.caller, r.dataProvider, r.addressesProvider)
	if err != nil {
		return nil, fmt.Errorf("fetch reserves: %w", err)
	}

	tokens := make([]common.Address, 0, 2*len(fetched))
	for _, res := range fetched {
		res.LiquidityIndex = NormalizedIncome(res.LiquidityRate, res.LiquidityIndex, res.LastUpdateTimestamp, currentTimestamp)
		res.VariableBorrowIndex = NormalizedDebt(res.VariableBorrowRate, res.VariableBorrowIndex, res.LastUpdateTimestamp, currentTimestamp)
		res.LastUpdateTimestamp = currentTimestamp

		if err := r.reserves.Upsert(ctx, res); err != nil {
			return nil, fmt.Errorf("upsert reserve %s: %w", res.Symbol, err)
		}

		aToken := common.HexToAddress(res.ATokenAddress)
		debtToken := common.HexToAddress(res.VariableDebtTokenAddress)
		if r.resolver != nil {
			asset := common.HexToAddress(res.UnderlyingAsset)
			r.resolver.Prime(aToken, asset)
			r.resolver.Prime(debtToken, asset)
		}
		tokens = append(tokens, aToken, debtToken)
	}

	r.logger.Debug("reserves refreshed",
		zap.Int("count", len(fetched)),
		zap.Uint64("timestamp", currentTimestamp))
	return tokens, nil
}

// NormalizedIncome projects a liquidity index forward using linearly accrued
// supply interest.
func NormalizedIncome(rate, index *big.Int, lastUpdate, now uint64) *big.Int {
	if now <= lastUpdate || rate == nil || index == nil {
		return copyBig(index)
	}
	return interest.RayMul(interest.LinearInterest(rate, now-lastUpdate), index)
}

// NormalizedDebt projects a variable borrow index forward using per-second
// compounded borrow interest.
func NormalizedDebt(rate, index *big.Int, lastUpdate, now uint64) *big.Int {
	if now <= lastUpdate || rate == nil || index == nil {
		return copyBig(index)
	}
	return interest.RayMul(interest.CompoundedInterest(rate, now-lastUpdate), index)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
