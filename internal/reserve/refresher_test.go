package reserve

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"lendingScope/internal/interest"
	"lendingScope/internal/protocol"
	"lendingScope/internal/storage/memory"
)

func TestNormalizedIncomeZeroElapsed(t *testing.T) {
	index := new(big.Int).Mul(interest.RAY, big.NewInt(2))
	rate := new(big.Int).Set(interest.RAY)

	got := NormalizedIncome(rate, index, 1000, 1000)
	if got.Cmp(index) != 0 {
		t.Fatalf("index should be unchanged, got %s", got)
	}
	if got == index {
		t.Fatalf("result must be a copy")
	}
}

func TestNormalizedIncomeLinearGrowth(t *testing.T) {
	index := new(big.Int).Set(interest.RAY)
	// Rate chosen so one year of linear accrual doubles the index.
	rate := new(big.Int).Set(interest.RAY)

	got := NormalizedIncome(rate, index, 0, interest.SecondsPerYear)
	want := new(big.Int).Mul(interest.RAY, big.NewInt(2))
	if got.Cmp(want) != 0 {
		t.Fatalf("normalized income mismatch: got %s want %s", got, want)
	}
}

func TestNormalizedDebtMatchesCompoundedInterest(t *testing.T) {
	index := new(big.Int).Mul(interest.RAY, big.NewInt(3))
	rate := new(big.Int).Div(interest.RAY, big.NewInt(10))
	const elapsed = 86400

	got := NormalizedDebt(rate, index, 0, elapsed)
	want := interest.RayMul(interest.CompoundedInterest(rate, elapsed), index)
	if got.Cmp(want) != 0 {
		t.Fatalf("normalized debt mismatch: got %s want %s", got, want)
	}
	if got.Cmp(index) <= 0 {
		t.Fatalf("debt index should grow, got %s", got)
	}
}

// providerReserveData mirrors the data provider tuple for packing fake
// responses.
type providerReserveData struct {
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

type providerBaseCurrency struct {
	MarketReferenceCurrencyUnit       *big.Int
	MarketReferenceCurrencyPriceInUsd *big.Int
	NetworkBaseTokenPriceInUsd        *big.Int
	NetworkBaseTokenPriceDecimals     uint8
}

type fakeCaller struct {
	responses map[common.Address][]byte
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	resp, ok := f.responses[*msg.To]
	if !ok {
		return nil, fmt.Errorf("no response for %s", msg.To.Hex())
	}
	return resp, nil
}

func TestRefreshStoresNormalizedSnapshot(t *testing.T) {
	providerABI, err := protocol.DataProviderABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	asset := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	aToken := common.HexToAddress("0x1111111111111111111111111111111111111111")
	debtToken := common.HexToAddress("0x2222222222222222222222222222222222222222")
	dataProvider := common.HexToAddress("0x3333333333333333333333333333333333333333")
	addressesProvider := common.HexToAddress("0x4444444444444444444444444444444444444444")

	const lastUpdate = uint64(1700000000)
	const now = lastUpdate + 3600

	zero := big.NewInt(0)
	item := providerReserveData{
		UnderlyingAsset:                asset,
		Name:                           "Dai Stablecoin",
		Symbol:                         "DAI",
		Decimals:                       big.NewInt(18),
		BaseLTVasCollateral:            big.NewInt(7500),
		ReserveLiquidationThreshold:    big.NewInt(8000),
		ReserveLiquidationBonus:        big.NewInt(10500),
		ReserveFactor:                  big.NewInt(1000),
		UsageAsCollateralEnabled:       true,
		BorrowingEnabled:               true,
		StableBorrowRateEnabled:        false,
		IsActive:                       true,
		IsFrozen:                       false,
		LiquidityIndex:                 new(big.Int).Set(interest.RAY),
		VariableBorrowIndex:            new(big.Int).Set(interest.RAY),
		LiquidityRate:                  new(big.Int).Div(interest.RAY, big.NewInt(20)),
		VariableBorrowRate:             new(big.Int).Div(interest.RAY, big.NewInt(10)),
		StableBorrowRate:               zero,
		LastUpdateTimestamp:            new(big.Int).SetUint64(lastUpdate),
		ATokenAddress:                  aToken,
		StableDebtTokenAddress:         common.Address{},
		VariableDebtTokenAddress:       debtToken,
		InterestRateStrategyAddress:    common.Address{},
		AvailableLiquidity:             zero,
		TotalPrincipalStableDebt:       zero,
		AverageStableRate:              zero,
		StableDebtLastUpdateTimestamp:  zero,
		TotalScaledVariableDebt:        zero,
		PriceInMarketReferenceCurrency: big.NewInt(400000000000000),
		PriceOracle:                    common.Address{},
		VariableRateSlope1:             zero,
		VariableRateSlope2:             zero,
		StableRateSlope1:               zero,
		StableRateSlope2:               zero,
		BaseStableBorrowRate:           zero,
		BaseVariableBorrowRate:         zero,
		OptimalUsageRatio:              zero,
		AccruedToTreasury:              zero,
		Unbacked:                       zero,
		IsolationModeTotalDebt:         zero,
		DebtCeiling:                    zero,
		DebtCeilingDecimals:            zero,
		BorrowCap:                      zero,
		SupplyCap:                      zero,
		EModeLabel:                     "",
	}
	base := providerBaseCurrency{
		MarketReferenceCurrencyUnit:       new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		MarketReferenceCurrencyPriceInUsd: big.NewInt(250000000000),
		NetworkBaseTokenPriceInUsd:        big.NewInt(250000000000),
		NetworkBaseTokenPriceDecimals:     8,
	}

	resp, err := providerABI.Methods["getReservesData"].Outputs.Pack([]providerReserveData{item}, base)
	if err != nil {
		t.Fatalf("pack response: %v", err)
	}

	caller := &fakeCaller{responses: map[common.Address][]byte{dataProvider: resp}}
	store := memory.NewReserveStore()
	resolver := protocol.NewAssetResolver(caller)
	refresher := NewRefresher(caller, store, resolver, dataProvider, addressesProvider, nil)

	tokens, err := refresher.Refresh(context.Background(), now)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != aToken || tokens[1] != debtToken {
		t.Fatalf("token set mismatch: %v", tokens)
	}

	stored, err := store.Get(context.Background(), asset.Hex())
	if err != nil {
		t.Fatalf("get reserve: %v", err)
	}
	if stored.Symbol != "DAI" || stored.Decimals != 18 {
		t.Fatalf("metadata mismatch: %+v", stored)
	}
	if stored.LastUpdateTimestamp != now {
		t.Fatalf("timestamp not advanced: %d", stored.LastUpdateTimestamp)
	}
	if stored.LiquidityIndex.Cmp(interest.RAY) <= 0 {
		t.Fatalf("liquidity index not normalized: %s", stored.LiquidityIndex)
	}
	if stored.VariableBorrowIndex.Cmp(interest.RAY) <= 0 {
		t.Fatalf("borrow index not normalized: %s", stored.VariableBorrowIndex)
	}

	// Resolver should be primed for both token addresses.
	got, err := resolver.Underlying(context.Background(), aToken)
	if err != nil || got != asset {
		t.Fatalf("aToken not primed: %v %s", err, got.Hex())
	}
	got, err = resolver.Underlying(context.Background(), debtToken)
	if err != nil || got != asset {
		t.Fatalf("debt token not primed: %v %s", err, got.Hex())
	}
}
