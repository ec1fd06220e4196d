package storage

import (
	"context"

	"lendingScope/internal/model"
)

// ReserveStore persists reserve parameter rows keyed by underlying asset.
type ReserveStore interface {
	// Upsert inserts or replaces a reserve row.
	Upsert(ctx context.Context, reserve model.Reserve) error

	// Get returns the reserve for an underlying asset.
	// Returns ErrNotFound if absent.
	Get(ctx context.Context, asset string) (model.Reserve, error)

	// All returns every reserve row.
	All(ctx context.Context) ([]model.Reserve, error)
}

// UserReserveStore persists per-(user, reserve) position rows.
type UserReserveStore interface {
	// Get returns the row for (user, asset). Returns ErrNotFound if absent.
	Get(ctx context.Context, user, asset string) (model.UserReserve, error)

	// Upsert inserts or replaces a position row, creating the parent user
	// record when it does not exist yet.
	Upsert(ctx context.Context, row model.UserReserve) error

	// Delete removes the (user, asset) row.
	Delete(ctx context.Context, user, asset string) error

	// CountByUser returns how many reserve rows the user currently has.
	CountByUser(ctx context.Context, user string) (int, error)

	// DeleteUser removes the user record and any remaining rows.
	DeleteUser(ctx context.Context, user string) error

	// All returns every user's positions grouped per user.
	All(ctx context.Context) ([]model.UserPositions, error)
}

// CheckpointStore persists the single global sync cursor.
type CheckpointStore interface {
	// Load returns the stored checkpoint; ok is false when none was saved yet.
	Load(ctx context.Context) (cp model.Checkpoint, ok bool, err error)

	// Save overwrites the checkpoint. Last write wins.
	Save(ctx context.Context, cp model.Checkpoint) error
}
