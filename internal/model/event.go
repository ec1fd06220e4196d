package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies a decoded protocol event. The set is closed: every
// consumer switches over all kinds.
type EventKind int

const (
	SupplyMint EventKind = iota
	SupplyBurn
	DebtMint
	DebtBurn
	SupplyTransfer
	CollateralEnabled
	CollateralDisabled
)

func (k EventKind) String() string {
	switch k {
	case SupplyMint:
		return "SupplyMint"
	case SupplyBurn:
		return "SupplyBurn"
	case DebtMint:
		return "DebtMint"
	case DebtBurn:
		return "DebtBurn"
	case SupplyTransfer:
		return "SupplyTransfer"
	case CollateralEnabled:
		return "CollateralEnabled"
	case CollateralDisabled:
		return "CollateralDisabled"
	default:
		return "Unknown"
	}
}

// Event is a decoded protocol log.
//
// Token events (mint/burn/transfer) carry the emitting token contract in
// Token plus Amount and the reserve normalization index at emission time.
// Collateral flag events carry the underlying reserve in Reserve and no
// amount. SupplyTransfer fills To with the receiving user.
type Event struct {
	Kind        EventKind
	BlockNumber uint64
	LogIndex    uint64

	Token   common.Address
	Reserve common.Address
	User    common.Address
	To      common.Address
	Amount  *big.Int
	Index   *big.Int
}
