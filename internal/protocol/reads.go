package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"lendingScope/internal/model"
)

// aggregatedReserveData mirrors the data provider's per-reserve tuple. Field
// names must match the ABI argument names for abi.ConvertType.
type aggregatedReserveData struct {
	UnderlyingAsset                common.Address
	Name                           string
	Symbol                         string
	Decimals                       *big.Int
	BaseLTVasCollateral            *big.Int
	ReserveLiquidationThreshold    *big.Int
	ReserveLiquidationBonus        *big.Int
	ReserveFactor                  *big.Int
	UsageAsCollateralEnabled       bool
	BorrowingEnabled               bool
	StableBorrowRateEnabled        bool
	IsActive                       bool
	IsFrozen                       bool
	LiquidityIndex                 *big.Int
	VariableBorrowIndex            *big.Int
	LiquidityRate                  *big.Int
	VariableBorrowRate             *big.Int
	StableBorrowRate               *big.Int
	LastUpdateTimestamp            *big.Int
	ATokenAddress                  common.Address
	StableDebtTokenAddress         common.Address
	VariableDebtTokenAddress       common.Address
	InterestRateStrategyAddress    common.Address
	AvailableLiquidity             *big.Int
	TotalPrincipalStableDebt       *big.Int
	AverageStableRate              *big.Int
	StableDebtLastUpdateTimestamp  *big.Int
	TotalScaledVariableDebt        *big.Int
	PriceInMarketReferenceCurrency *big.Int
	PriceOracle                    common.Address
	VariableRateSlope1             *big.Int
	VariableRateSlope2             *big.Int
	StableRateSlope1               *big.Int
	StableRateSlope2               *big.Int
	BaseStableBorrowRate           *big.Int
	BaseVariableBorrowRate         *big.Int
	OptimalUsageRatio              *big.Int
	IsPaused                       bool
	IsSiloedBorrowing              bool
	AccruedToTreasury              *big.Int
	Unbacked                       *big.Int
	IsolationModeTotalDebt         *big.Int
	FlashLoanEnabled               bool
	DebtCeiling                    *big.Int
	DebtCeilingDecimals            *big.Int
	EModeCategoryId                uint8
	BorrowCap                      *big.Int
	SupplyCap                      *big.Int
	EModeLtv                       uint16
	EModeLiquidationThreshold      uint16
	EModeLiquidationBonus          uint16
	EModePriceSource               common.Address
	EModeLabel                     string
	BorrowableInIsolation          bool
}

// FetchReservesData pulls every reserve's configuration, rates, indices and
// market reference price from the pool data provider in one call.
func FetchReservesData(ctx context.Context, caller ContractCaller, dataProvider, addressesProvider common.Address) ([]model.Reserve, error) {
	providerABI, err := DataProviderABI()
	if err != nil {
		return nil, err
	}
	input, err := providerABI.Pack("getReservesData", addressesProvider)
	if err != nil {
		return nil, fmt.Errorf("pack getReservesData: %w", err)
	}

	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &dataProvider, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getReservesData: %w", err)
	}

	values, err := providerABI.Unpack("getReservesData", output)
	if err != nil {
		return nil, fmt.Errorf("unpack getReservesData: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected getReservesData values: %d", len(values))
	}

	raw := *abi.ConvertType(values[0], new([]aggregatedReserveData)).(*[]aggregatedReserveData)

	reserves := make([]model.Reserve, 0, len(raw))
	for _, item := range raw {
		reserves = append(reserves, model.Reserve{
			UnderlyingAsset:          item.UnderlyingAsset.Hex(),
			Symbol:                   item.Symbol,
			Decimals:                 uint8(item.Decimals.Uint64()),
			LTV:                      new(big.Int).Set(item.BaseLTVasCollateral),
			LiquidationThreshold:     new(big.Int).Set(item.ReserveLiquidationThreshold),
			LiquidationBonus:         new(big.Int).Set(item.ReserveLiquidationBonus),
			LiquidityIndex:           new(big.Int).Set(item.LiquidityIndex),
			VariableBorrowIndex:      new(big.Int).Set(item.VariableBorrowIndex),
			LiquidityRate:            new(big.Int).Set(item.LiquidityRate),
			VariableBorrowRate:       new(big.Int).Set(item.VariableBorrowRate),
			Price:                    new(big.Int).Set(item.PriceInMarketReferenceCurrency),
			UsageAsCollateralEnabled: item.UsageAsCollateralEnabled,
			LastUpdateTimestamp:      item.LastUpdateTimestamp.Uint64(),
			ATokenAddress:            item.ATokenAddress.Hex(),
			VariableDebtTokenAddress: item.VariableDebtTokenAddress.Hex(),
		})
	}
	return reserves, nil
}

// FetchReferencePrice reads the latest answer from a Chainlink style
// aggregator, typically the ETH/USD feed used to convert market reference
// prices into USD.
func FetchReferencePrice(ctx context.Context, caller ContractCaller, aggregator common.Address) (*big.Int, error) {
	feedABI, err := AggregatorABI()
	if err != nil {
		return nil, err
	}
	input, err := feedABI.Pack("latestRoundData")
	if err != nil {
		return nil, fmt.Errorf("pack latestRoundData: %w", err)
	}

	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &aggregator, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call latestRoundData on %s: %w", aggregator.Hex(), err)
	}

	values, err := feedABI.Unpack("latestRoundData", output)
	if err != nil {
		return nil, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("unexpected latestRoundData values: %d", len(values))
	}
	answer, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	if answer.Sign() <= 0 {
		return nil, fmt.Errorf("aggregator %s returned non-positive answer %s", aggregator.Hex(), answer)
	}
	return answer, nil
}
