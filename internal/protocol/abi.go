package protocol

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const aTokenABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "Mint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "target", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "Burn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "BalanceTransfer",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "UNDERLYING_ASSET_ADDRESS",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const debtTokenABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "onBehalfOf", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "Mint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "Burn",
    "type": "event"
  }
]`

const lendingPoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "ReserveUsedAsCollateralEnabled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "ReserveUsedAsCollateralDisabled",
    "type": "event"
  }
]`

const aggregatorABIJSON = `[
  {
    "inputs": [],
    "name": "latestRoundData",
    "outputs": [
      {"internalType": "uint80", "name": "roundId", "type": "uint80"},
      {"internalType": "int256", "name": "answer", "type": "int256"},
      {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
      {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
      {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const dataProviderABIJSON = `[
  {
    "inputs": [{"internalType": "contract IPoolAddressesProvider", "name": "provider", "type": "address"}],
    "name": "getReservesData",
    "outputs": [
      {
        "components": [
          {"internalType": "address", "name": "underlyingAsset", "type": "address"},
          {"internalType": "string", "name": "name", "type": "string"},
          {"internalType": "string", "name": "symbol", "type": "string"},
          {"internalType": "uint256", "name": "decimals", "type": "uint256"},
          {"internalType": "uint256", "name": "baseLTVasCollateral", "type": "uint256"},
          {"internalType": "uint256", "name": "reserveLiquidationThreshold", "type": "uint256"},
          {"internalType": "uint256", "name": "reserveLiquidationBonus", "type": "uint256"},
          {"internalType": "uint256", "name": "reserveFactor", "type": "uint256"},
          {"internalType": "bool", "name": "usageAsCollateralEnabled", "type": "bool"},
          {"internalType": "bool", "name": "borrowingEnabled", "type": "bool"},
          {"internalType": "bool", "name": "stableBorrowRateEnabled", "type": "bool"},
          {"internalType": "bool", "name": "isActive", "type": "bool"},
          {"internalType": "bool", "name": "isFrozen", "type": "bool"},
          {"internalType": "uint128", "name": "liquidityIndex", "type": "uint128"},
          {"internalType": "uint128", "name": "variableBorrowIndex", "type": "uint128"},
          {"internalType": "uint128", "name": "liquidityRate", "type": "uint128"},
          {"internalType": "uint128", "name": "variableBorrowRate", "type": "uint128"},
          {"internalType": "uint128", "name": "stableBorrowRate", "type": "uint128"},
          {"internalType": "uint40", "name": "lastUpdateTimestamp", "type": "uint40"},
          {"internalType": "address", "name": "aTokenAddress", "type": "address"},
          {"internalType": "address", "name": "stableDebtTokenAddress", "type": "address"},
          {"internalType": "address", "name": "variableDebtTokenAddress", "type": "address"},
          {"internalType": "address", "name": "interestRateStrategyAddress", "type": "address"},
          {"internalType": "uint256", "name": "availableLiquidity", "type": "uint256"},
          {"internalType": "uint256", "name": "totalPrincipalStableDebt", "type": "uint256"},
          {"internalType": "uint256", "name": "averageStableRate", "type": "uint256"},
          {"internalType": "uint256", "name": "stableDebtLastUpdateTimestamp", "type": "uint256"},
          {"internalType": "uint256", "name": "totalScaledVariableDebt", "type": "uint256"},
          {"internalType": "uint256", "name": "priceInMarketReferenceCurrency", "type": "uint256"},
          {"internalType": "address", "name": "priceOracle", "type": "address"},
          {"internalType": "uint256", "name": "variableRateSlope1", "type": "uint256"},
          {"internalType": "uint256", "name": "variableRateSlope2", "type": "uint256"},
          {"internalType": "uint256", "name": "stableRateSlope1", "type": "uint256"},
          {"internalType": "uint256", "name": "stableRateSlope2", "type": "uint256"},
          {"internalType": "uint256", "name": "baseStableBorrowRate", "type": "uint256"},
          {"internalType": "uint256", "name": "baseVariableBorrowRate", "type": "uint256"},
          {"internalType": "uint256", "name": "optimalUsageRatio", "type": "uint256"},
          {"internalType": "bool", "name": "isPaused", "type": "bool"},
          {"internalType": "bool", "name": "isSiloedBorrowing", "type": "bool"},
          {"internalType": "uint128", "name": "accruedToTreasury", "type": "uint128"},
          {"internalType": "uint128", "name": "unbacked", "type": "uint128"},
          {"internalType": "uint128", "name": "isolationModeTotalDebt", "type": "uint128"},
          {"internalType": "bool", "name": "flashLoanEnabled", "type": "bool"},
          {"internalType": "uint256", "name": "debtCeiling", "type": "uint256"},
          {"internalType": "uint256", "name": "debtCeilingDecimals", "type": "uint256"},
          {"internalType": "uint8", "name": "eModeCategoryId", "type": "uint8"},
          {"internalType": "uint256", "name": "borrowCap", "type": "uint256"},
          {"internalType": "uint256", "name": "supplyCap", "type": "uint256"},
          {"internalType": "uint16", "name": "eModeLtv", "type": "uint16"},
          {"internalType": "uint16", "name": "eModeLiquidationThreshold", "type": "uint16"},
          {"internalType": "uint16", "name": "eModeLiquidationBonus", "type": "uint16"},
          {"internalType": "address", "name": "eModePriceSource", "type": "address"},
          {"internalType": "string", "name": "eModeLabel", "type": "string"},
          {"internalType": "bool", "name": "borrowableInIsolation", "type": "bool"}
        ],
        "internalType": "struct IUiPoolDataProviderV3.AggregatedReserveData[]",
        "name": "",
        "type": "tuple[]"
      },
      {
        "components": [
          {"internalType": "uint256", "name": "marketReferenceCurrencyUnit", "type": "uint256"},
          {"internalType": "int256", "name": "marketReferenceCurrencyPriceInUsd", "type": "int256"},
          {"internalType": "int256", "name": "networkBaseTokenPriceInUsd", "type": "int256"},
          {"internalType": "uint8", "name": "networkBaseTokenPriceDecimals", "type": "uint8"}
        ],
        "internalType": "struct IUiPoolDataProviderV3.BaseCurrencyInfo",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	aTokenABI           abi.ABI
	aTokenABIOnce       sync.Once
	aTokenABIErr        error
	debtTokenABI        abi.ABI
	debtTokenABIOnce    sync.Once
	debtTokenABIErr     error
	lendingPoolABI      abi.ABI
	lendingPoolABIOnce  sync.Once
	lendingPoolABIErr   error
	aggregatorABI       abi.ABI
	aggregatorABIOnce   sync.Once
	aggregatorABIErr    error
	dataProviderABI     abi.ABI
	dataProviderABIOnce sync.Once
	dataProviderABIErr  error
)

// ATokenABI returns the parsed interest-bearing token ABI.
func ATokenABI() (abi.ABI, error) {
	aTokenABIOnce.Do(func() {
		aTokenABI, aTokenABIErr = abi.JSON(strings.NewReader(aTokenABIJSON))
	})
	return aTokenABI, aTokenABIErr
}

// DebtTokenABI returns the parsed variable debt token ABI.
func DebtTokenABI() (abi.ABI, error) {
	debtTokenABIOnce.Do(func() {
		debtTokenABI, debtTokenABIErr = abi.JSON(strings.NewReader(debtTokenABIJSON))
	})
	return debtTokenABI, debtTokenABIErr
}

// LendingPoolABI returns the parsed lending pool ABI.
func LendingPoolABI() (abi.ABI, error) {
	lendingPoolABIOnce.Do(func() {
		lendingPoolABI, lendingPoolABIErr = abi.JSON(strings.NewReader(lendingPoolABIJSON))
	})
	return lendingPoolABI, lendingPoolABIErr
}

// AggregatorABI returns the parsed price feed aggregator ABI.
func AggregatorABI() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// DataProviderABI returns the parsed pool data provider ABI.
func DataProviderABI() (abi.ABI, error) {
	dataProviderABIOnce.Do(func() {
		dataProviderABI, dataProviderABIErr = abi.JSON(strings.NewReader(dataProviderABIJSON))
	})
	return dataProviderABI, dataProviderABIErr
}
