package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// UserReserveStore implements storage.UserReserveStore on Postgres. A parent
// users row groups the per-reserve rows; deleting the user cascades.
type UserReserveStore struct {
	db *DB
}

// NewUserReserveStore creates a user reserve store on db.
func NewUserReserveStore(db *DB) *UserReserveStore {
	return &UserReserveStore{db: db}
}

var _ storage.UserReserveStore = (*UserReserveStore)(nil)

func (s *UserReserveStore) Get(ctx context.Context, user, asset string) (model.UserReserve, error) {
	row := s.db.pool.QueryRow(ctx, `
		SELECT user_address, reserve_asset, scaled_supply_balance, scaled_variable_debt, usage_as_collateral_enabled
		FROM user_reserves
		WHERE user_address = $1 AND reserve_asset = $2
	`, user, asset)

	out, err := scanUserReserve(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserReserve{}, storage.ErrNotFound
		}
		return model.UserReserve{}, fmt.Errorf("get user reserve: %w", err)
	}
	return out, nil
}

func (s *UserReserveStore) Upsert(ctx context.Context, row model.UserReserve) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO users (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`, row.User)
	batch.Queue(`
		INSERT INTO user_reserves (
			user_address, reserve_asset, scaled_supply_balance, scaled_variable_debt,
			usage_as_collateral_enabled, updated_at
		) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_address, reserve_asset)
		DO UPDATE SET
			scaled_supply_balance = EXCLUDED.scaled_supply_balance,
			scaled_variable_debt = EXCLUDED.scaled_variable_debt,
			usage_as_collateral_enabled = EXCLUDED.usage_as_collateral_enabled,
			updated_at = now()
	`,
		row.User,
		row.ReserveAsset,
		bigString(row.ScaledSupplyBalance),
		bigString(row.ScaledVariableDebt),
		row.UsageAsCollateralEnabled,
	)

	br := s.db.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert user reserve: %w", err)
		}
	}
	return nil
}

func (s *UserReserveStore) Delete(ctx context.Context, user, asset string) error {
	_, err := s.db.pool.Exec(ctx, `
		DELETE FROM user_reserves WHERE user_address = $1 AND reserve_asset = $2
	`, user, asset)
	if err != nil {
		return fmt.Errorf("delete user reserve: %w", err)
	}
	return nil
}

func (s *UserReserveStore) CountByUser(ctx context.Context, user string) (int, error) {
	var count int
	row := s.db.pool.QueryRow(ctx, `SELECT count(*) FROM user_reserves WHERE user_address = $1`, user)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count user reserves: %w", err)
	}
	return count, nil
}

func (s *UserReserveStore) DeleteUser(ctx context.Context, user string) error {
	_, err := s.db.pool.Exec(ctx, `DELETE FROM users WHERE address = $1`, user)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *UserReserveStore) All(ctx context.Context) ([]model.UserPositions, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT user_address, reserve_asset, scaled_supply_balance, scaled_variable_debt, usage_as_collateral_enabled
		FROM user_reserves
		ORDER BY user_address, reserve_asset
	`)
	if err != nil {
		return nil, fmt.Errorf("list user reserves: %w", err)
	}
	defer rows.Close()

	out := make([]model.UserPositions, 0, 256)
	for rows.Next() {
		row, err := scanUserReserve(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user reserve: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].User == row.User {
			out[n-1].Reserves = append(out[n-1].Reserves, row)
		} else {
			out = append(out, model.UserPositions{User: row.User, Reserves: []model.UserReserve{row}})
		}
	}
	return out, rows.Err()
}

func scanUserReserve(row pgx.Row) (model.UserReserve, error) {
	var (
		out           model.UserReserve
		supply, debt string
	)
	if err := row.Scan(&out.User, &out.ReserveAsset, &supply, &debt, &out.UsageAsCollateralEnabled); err != nil {
		return model.UserReserve{}, err
	}

	var err error
	if out.ScaledSupplyBalance, err = parseBig(supply); err != nil {
		return model.UserReserve{}, err
	}
	if out.ScaledVariableDebt, err = parseBig(debt); err != nil {
		return model.UserReserve{}, err
	}
	return out, nil
}
