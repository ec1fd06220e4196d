package model

import "math/big"

// LiquidationProposal is the sized liquidation call for one account. It is
// ephemeral output of a risk pass and is never persisted.
type LiquidationProposal struct {
	User             string
	CollateralAsset  string
	CollateralAmount *big.Int
	DebtAsset        string
	DebtAmount       *big.Int
}
