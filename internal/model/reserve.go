package model

import "math/big"

// Reserve holds the lending-pool parameters of one supported asset.
//
// All balances, indices, and rates are RAY-scale (1e27) big integers except
// LTV, LiquidationThreshold, and LiquidationBonus, which are basis points
// (1e4), and Price, which is denominated in the market reference currency.
// Indices only ever grow: interest accrues, it never reverses.
type Reserve struct {
	UnderlyingAsset          string
	Symbol                   string
	Decimals                 uint8
	LTV                      *big.Int
	LiquidationThreshold     *big.Int
	LiquidationBonus         *big.Int
	UsageAsCollateralEnabled bool
	LiquidityIndex           *big.Int
	VariableBorrowIndex      *big.Int
	LiquidityRate            *big.Int
	VariableBorrowRate       *big.Int
	LastUpdateTimestamp      uint64
	Price                    *big.Int
	ATokenAddress            string
	VariableDebtTokenAddress string
}
