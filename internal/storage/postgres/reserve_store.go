package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// ReserveStore implements storage.ReserveStore on Postgres. Numeric columns
// hold RAY-scale values as text to avoid any precision loss.
type ReserveStore struct {
	db *DB
}

// NewReserveStore creates a reserve store on db.
func NewReserveStore(db *DB) *ReserveStore {
	return &ReserveStore{db: db}
}

var _ storage.ReserveStore = (*ReserveStore)(nil)

const reserveColumns = `
	underlying_asset, symbol, decimals, ltv, liquidation_threshold,
	liquidation_bonus, usage_as_collateral_enabled, liquidity_index,
	variable_borrow_index, liquidity_rate, variable_borrow_rate,
	last_update_timestamp, price, atoken_address, variable_debt_token_address
`

func (s *ReserveStore) Upsert(ctx context.Context, reserve model.Reserve) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO reserves (`+reserveColumns+`, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15, now())
		ON CONFLICT (underlying_asset)
		DO UPDATE SET
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			ltv = EXCLUDED.ltv,
			liquidation_threshold = EXCLUDED.liquidation_threshold,
			liquidation_bonus = EXCLUDED.liquidation_bonus,
			usage_as_collateral_enabled = EXCLUDED.usage_as_collateral_enabled,
			liquidity_index = EXCLUDED.liquidity_index,
			variable_borrow_index = EXCLUDED.variable_borrow_index,
			liquidity_rate = EXCLUDED.liquidity_rate,
			variable_borrow_rate = EXCLUDED.variable_borrow_rate,
			last_update_timestamp = EXCLUDED.last_update_timestamp,
			price = EXCLUDED.price,
			atoken_address = EXCLUDED.atoken_address,
			variable_debt_token_address = EXCLUDED.variable_debt_token_address,
			updated_at = now()
	`,
		reserve.UnderlyingAsset,
		reserve.Symbol,
		int16(reserve.Decimals),
		bigString(reserve.LTV),
		bigString(reserve.LiquidationThreshold),
		bigString(reserve.LiquidationBonus),
		reserve.UsageAsCollateralEnabled,
		bigString(reserve.LiquidityIndex),
		bigString(reserve.VariableBorrowIndex),
		bigString(reserve.LiquidityRate),
		bigString(reserve.VariableBorrowRate),
		int64(reserve.LastUpdateTimestamp),
		bigString(reserve.Price),
		reserve.ATokenAddress,
		reserve.VariableDebtTokenAddress,
	)
	if err != nil {
		return fmt.Errorf("upsert reserve: %w", err)
	}
	return nil
}

func (s *ReserveStore) Get(ctx context.Context, asset string) (model.Reserve, error) {
	row := s.db.pool.QueryRow(ctx, `SELECT `+reserveColumns+` FROM reserves WHERE underlying_asset = $1`, asset)
	reserve, err := scanReserve(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reserve{}, storage.ErrNotFound
		}
		return model.Reserve{}, fmt.Errorf("get reserve: %w", err)
	}
	return reserve, nil
}

func (s *ReserveStore) All(ctx context.Context) ([]model.Reserve, error) {
	rows, err := s.db.pool.Query(ctx, `SELECT `+reserveColumns+` FROM reserves ORDER BY underlying_asset`)
	if err != nil {
		return nil, fmt.Errorf("list reserves: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reserve, 0, 64)
	for rows.Next() {
		reserve, err := scanReserve(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reserve: %w", err)
		}
		out = append(out, reserve)
	}
	return out, rows.Err()
}

func scanReserve(row pgx.Row) (model.Reserve, error) {
	var (
		reserve  model.Reserve
		decimals int16
		ts       int64
		ltv, threshold, bonus, liqIndex, borrowIndex, liqRate, borrowRate, price string
	)
	err := row.Scan(
		&reserve.UnderlyingAsset,
		&reserve.Symbol,
		&decimals,
		&ltv,
		&threshold,
		&bonus,
		&reserve.UsageAsCollateralEnabled,
		&liqIndex,
		&borrowIndex,
		&liqRate,
		&borrowRate,
		&ts,
		&price,
		&reserve.ATokenAddress,
		&reserve.VariableDebtTokenAddress,
	)
	if err != nil {
		return model.Reserve{}, err
	}

	reserve.Decimals = uint8(decimals)
	reserve.LastUpdateTimestamp = uint64(ts)
	for _, field := range []struct {
		dst **big.Int
		src string
	}{
		{&reserve.LTV, ltv},
		{&reserve.LiquidationThreshold, threshold},
		{&reserve.LiquidationBonus, bonus},
		{&reserve.LiquidityIndex, liqIndex},
		{&reserve.VariableBorrowIndex, borrowIndex},
		{&reserve.LiquidityRate, liqRate},
		{&reserve.VariableBorrowRate, borrowRate},
		{&reserve.Price, price},
	} {
		value, err := parseBig(field.src)
		if err != nil {
			return model.Reserve{}, err
		}
		*field.dst = value
	}
	return reserve, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value: %q", s)
	}
	return v, nil
}
