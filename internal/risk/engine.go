// Package risk evaluates account health and sizes liquidation calls.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lendingScope/internal/interest"
	"lendingScope/internal/model"
	"lendingScope/internal/protocol"
	"lendingScope/internal/storage"
)

// ErrScanActive is returned when a scan is requested while another pass is
// still running. Passes read a full snapshot, so overlapping them would
// duplicate work and interleave output.
var ErrScanActive = errors.New("risk: scan already in progress")

// oracleBase is the 1e8 divisor of Chainlink USD answers.
var oracleBase = big.NewInt(100000000)

// UserHealth is the computed account summary for one user.
type UserHealth struct {
	User                        string
	TotalLiquidityUSD           *big.Int
	TotalCollateralUSD          *big.Int
	TotalBorrowsUSD             *big.Int
	AvailableBorrowsUSD         *big.Int
	CurrentLTV                  *big.Int
	CurrentLiquidationThreshold *big.Int
	HealthFactor                *big.Int
}

// Underwater reports whether the account carries debt and its health factor
// is below 1.0.
func (h UserHealth) Underwater() bool {
	return h.HealthFactor.Cmp(interest.BorrowFree) != 0 && h.HealthFactor.Cmp(interest.Factor) < 0
}

// Report is the output of one scan pass.
type Report struct {
	Users      []UserHealth
	Proposals  []model.LiquidationProposal
	Underwater int
}

// Engine runs liquidation scans over the stored reserve and position
// snapshots.
type Engine struct {
	reserves        storage.ReserveStore
	users           storage.UserReserveStore
	caller          protocol.ContractCaller
	priceFeed       common.Address
	minHealthFactor *big.Int
	logger          *zap.Logger

	mu sync.Mutex
}

// NewEngine builds a scan engine. minHealthFactor filters out accounts at or
// below the floor; candidates must be strictly above it.
func NewEngine(
	reserves storage.ReserveStore,
	users storage.UserReserveStore,
	caller protocol.ContractCaller,
	priceFeed common.Address,
	minHealthFactor *big.Int,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		reserves:        reserves,
		users:           users,
		caller:          caller,
		priceFeed:       priceFeed,
		minHealthFactor: new(big.Int).Set(minHealthFactor),
		logger:          logger,
	}
}

// Scan computes health factors for every stored user and emits liquidation
// proposals for eligible accounts. Only one pass may run at a time.
func (e *Engine) Scan(ctx context.Context) (Report, error) {
	if !e.mu.TryLock() {
		return Report{}, ErrScanActive
	}
	defer e.mu.Unlock()

	start := time.Now()

	reserves, err := e.reserves.All(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load reserves: %w", err)
	}
	byAsset := make(map[string]model.Reserve, len(reserves))
	for _, res := range reserves {
		byAsset[strings.ToLower(res.UnderlyingAsset)] = res
	}

	users, err := e.users.All(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load user positions: %w", err)
	}

	refPrice, err := protocol.FetchReferencePrice(ctx, e.caller, e.priceFeed)
	if err != nil {
		return Report{}, fmt.Errorf("reference price: %w", err)
	}

	report := Report{Users: make([]UserHealth, 0, len(users))}
	for _, positions := range users {
		health, proposal, err := e.evaluate(positions, byAsset, refPrice)
		if err != nil {
			return Report{}, err
		}
		report.Users = append(report.Users, health)
		if health.Underwater() {
			report.Underwater++
		}
		if proposal != nil {
			report.Proposals = append(report.Proposals, *proposal)
		}
	}

	e.logger.Info("scan complete",
		zap.Int("users", len(report.Users)),
		zap.Int("underwater", report.Underwater),
		zap.Int("proposals", len(report.Proposals)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// position is one liquidation-relevant leg of a user's account.
type position struct {
	reserve   model.Reserve
	amount    *big.Int
	amountUSD *big.Int
	// unitUSD is the USD value of one whole token, used to convert USD caps
	// back into token units.
	unitUSD *big.Int
}

func (e *Engine) evaluate(positions model.UserPositions, byAsset map[string]model.Reserve, refPrice *big.Int) (UserHealth, *model.LiquidationProposal, error) {
	zero := big.NewInt(0)
	totalLiquidityUSD := new(big.Int)
	totalCollateralUSD := new(big.Int)
	totalBorrowsUSD := new(big.Int)
	weightedLTV := new(big.Int)
	weightedThreshold := new(big.Int)
	var colls, debts []position

	for _, row := range positions.Reserves {
		res, ok := byAsset[strings.ToLower(row.ReserveAsset)]
		if !ok {
			return UserHealth{}, nil, fmt.Errorf("risk: reserve %s referenced by user %s is not registered", row.ReserveAsset, positions.User)
		}

		underlyingBalance := compoundedBalance(res.LiquidityIndex, row.ScaledSupplyBalance)
		borrowBalance := compoundedBalance(res.VariableBorrowIndex, row.ScaledVariableDebt)
		underlyingUSD := usdValue(underlyingBalance, res.Price, res.Decimals, refPrice)
		borrowUSD := usdValue(borrowBalance, res.Price, res.Decimals, refPrice)

		totalLiquidityUSD.Add(totalLiquidityUSD, underlyingUSD)
		totalBorrowsUSD.Add(totalBorrowsUSD, borrowUSD)

		if res.UsageAsCollateralEnabled && row.UsageAsCollateralEnabled && underlyingBalance.Sign() > 0 {
			totalCollateralUSD.Add(totalCollateralUSD, underlyingUSD)
			weightedLTV.Add(weightedLTV, new(big.Int).Mul(underlyingUSD, res.LTV))
			weightedThreshold.Add(weightedThreshold, new(big.Int).Mul(underlyingUSD, res.LiquidationThreshold))
			colls = append(colls, position{
				reserve:   res,
				amount:    underlyingBalance,
				amountUSD: underlyingUSD,
				unitUSD:   unitPrice(underlyingUSD, underlyingBalance, res.Decimals),
			})
		}

		if borrowBalance.Sign() > 0 {
			debts = append(debts, position{
				reserve:   res,
				amount:    borrowBalance,
				amountUSD: borrowUSD,
				unitUSD:   unitPrice(borrowUSD, borrowBalance, res.Decimals),
			})
		}
	}

	currentLTV := new(big.Int)
	currentThreshold := new(big.Int)
	if weightedLTV.Sign() > 0 {
		currentLTV.Div(weightedLTV, totalCollateralUSD)
	}
	if weightedThreshold.Sign() > 0 {
		currentThreshold.Div(weightedThreshold, totalCollateralUSD)
	}

	healthFactor := new(big.Int).Set(interest.BorrowFree)
	if totalBorrowsUSD.Sign() != 0 {
		healthFactor = interest.PercentMul(new(big.Int).Mul(totalCollateralUSD, interest.Factor), currentThreshold)
		healthFactor.Div(healthFactor, totalBorrowsUSD)
	}

	availableBorrowsUSD := new(big.Int)
	if currentLTV.Sign() > 0 {
		availableBorrowsUSD.Mul(totalCollateralUSD, currentLTV)
		availableBorrowsUSD.Div(availableBorrowsUSD, interest.PercentBase)
		availableBorrowsUSD.Sub(availableBorrowsUSD, totalBorrowsUSD)
		if availableBorrowsUSD.Sign() < 0 {
			availableBorrowsUSD.Set(zero)
		}
	}

	health := UserHealth{
		User:                        positions.User,
		TotalLiquidityUSD:           totalLiquidityUSD,
		TotalCollateralUSD:          totalCollateralUSD,
		TotalBorrowsUSD:             totalBorrowsUSD,
		AvailableBorrowsUSD:         availableBorrowsUSD,
		CurrentLTV:                  currentLTV,
		CurrentLiquidationThreshold: currentThreshold,
		HealthFactor:                healthFactor,
	}

	if !health.Underwater() || healthFactor.Cmp(e.minHealthFactor) <= 0 || len(colls) == 0 || len(debts) == 0 {
		return health, nil, nil
	}

	proposal := buildProposal(positions.User, largestUSD(colls), largestUSD(debts))
	return health, &proposal, nil
}

// buildProposal sizes a liquidation call for the chosen collateral and debt
// pair. At most half the debt may be repaid; if the matching discounted
// collateral exceeds the user's balance the call is collateral-limited and
// the debt amount is back-solved instead.
func buildProposal(user string, coll, debt position) model.LiquidationProposal {
	bonus := coll.reserve.LiquidationBonus

	maxDebtAmount := new(big.Int).Mul(interest.HalfFactor, debt.amount)
	maxDebtAmount.Div(maxDebtAmount, interest.Factor)
	maxDebtUSD := new(big.Int).Mul(interest.HalfFactor, debt.amountUSD)
	maxDebtUSD.Div(maxDebtUSD, interest.Factor)

	maxCollAmount := interest.PercentMul(new(big.Int).Mul(maxDebtUSD, interest.Pow10(coll.reserve.Decimals)), bonus)
	maxCollAmount.Div(maxCollAmount, coll.unitUSD)

	var collateralAmount, debtAmount *big.Int
	if maxCollAmount.Cmp(coll.amount) > 0 {
		collateralAmount = new(big.Int).Set(coll.amount)
		debtAmount = interest.PercentDiv(new(big.Int).Mul(coll.amountUSD, interest.Pow10(debt.reserve.Decimals)), bonus)
		debtAmount.Div(debtAmount, debt.unitUSD)
	} else {
		collateralAmount = maxCollAmount
		debtAmount = maxDebtAmount
	}

	return model.LiquidationProposal{
		User:             user,
		CollateralAsset:  coll.reserve.UnderlyingAsset,
		CollateralAmount: collateralAmount,
		DebtAsset:        debt.reserve.UnderlyingAsset,
		DebtAmount:       debtAmount,
	}
}

// largestUSD returns the position with the greatest USD value.
func largestUSD(positions []position) position {
	best := positions[0]
	for _, p := range positions[1:] {
		if p.amountUSD.Cmp(best.amountUSD) > 0 {
			best = p
		}
	}
	return best
}

// compoundedBalance converts a scaled balance back to underlying units using
// the reserve's normalized index.
func compoundedBalance(index, scaled *big.Int) *big.Int {
	if index == nil || scaled == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(index, scaled)
	return out.Div(out, interest.RAY)
}

// usdValue converts a token balance into USD using the asset's market
// reference price and the reference currency's USD price.
func usdValue(balance, assetPrice *big.Int, decimals uint8, refPrice *big.Int) *big.Int {
	if balance == nil || assetPrice == nil || refPrice == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(balance, assetPrice)
	out.Mul(out, refPrice)
	out.Div(out, interest.Pow10(decimals))
	return out.Div(out, oracleBase)
}

// unitPrice derives the USD value of one whole token from a balance and its
// aggregate USD value.
func unitPrice(amountUSD, amount *big.Int, decimals uint8) *big.Int {
	out := new(big.Int).Mul(amountUSD, interest.Pow10(decimals))
	return out.Div(out, amount)
}
