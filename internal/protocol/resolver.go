package protocol

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller abstracts eth_call so resolvers and read helpers can be
// tested without an RPC endpoint.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// AssetResolver maps aToken and variable debt token addresses to their
// underlying reserve asset. Both token kinds expose the same
// UNDERLYING_ASSET_ADDRESS getter and the mapping never changes, so results
// are cached for the process lifetime.
type AssetResolver struct {
	caller ContractCaller

	mu     sync.RWMutex
	assets map[common.Address]common.Address
}

// NewAssetResolver builds a resolver backed by the given caller.
func NewAssetResolver(caller ContractCaller) *AssetResolver {
	return &AssetResolver{
		caller: caller,
		assets: make(map[common.Address]common.Address),
	}
}

// Prime seeds the cache with a known token to asset mapping.
func (r *AssetResolver) Prime(token, asset common.Address) {
	r.mu.Lock()
	r.assets[token] = asset
	r.mu.Unlock()
}

// Underlying resolves the reserve asset behind a protocol token.
func (r *AssetResolver) Underlying(ctx context.Context, token common.Address) (common.Address, error) {
	r.mu.RLock()
	asset, ok := r.assets[token]
	r.mu.RUnlock()
	if ok {
		return asset, nil
	}

	tokenABI, err := ATokenABI()
	if err != nil {
		return common.Address{}, err
	}
	input, err := tokenABI.Pack("UNDERLYING_ASSET_ADDRESS")
	if err != nil {
		return common.Address{}, fmt.Errorf("pack UNDERLYING_ASSET_ADDRESS: %w", err)
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call UNDERLYING_ASSET_ADDRESS on %s: %w", token.Hex(), err)
	}

	values, err := tokenABI.Unpack("UNDERLYING_ASSET_ADDRESS", output)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack UNDERLYING_ASSET_ADDRESS: %w", err)
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("unexpected UNDERLYING_ASSET_ADDRESS values: %d", len(values))
	}
	asset, err = asAddress(values[0])
	if err != nil {
		return common.Address{}, err
	}

	r.mu.Lock()
	r.assets[token] = asset
	r.mu.Unlock()
	return asset, nil
}
