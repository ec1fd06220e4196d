package model

import "math/big"

// UserReserve is one (user, reserve) position row.
//
// Balances are scaled: multiplying by the reserve's current normalization
// index and dividing by RAY yields the real underlying amount. A row exists
// only while at least one leg is non-zero (or the collateral flag was set
// before any balance); when both legs hit exactly zero the row is deleted.
type UserReserve struct {
	User                     string
	ReserveAsset             string
	ScaledSupplyBalance      *big.Int
	ScaledVariableDebt       *big.Int
	UsageAsCollateralEnabled bool
}

// UserPositions groups every reserve row of a single user for a risk pass.
type UserPositions struct {
	User     string
	Reserves []UserReserve
}
