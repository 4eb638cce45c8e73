package repository

import (
	"context"

	"dispatch/internal/domain"
)

// WalletRepository defines the persistence operations for the wallet ledger.
//
// Apply is the only mutation: it atomically adjusts the cached vehicle
// balance and appends the ledger row in one unit. Entries are append-only and
// never edited or deleted.
type WalletRepository interface {
	// Apply commits the entry. For negative amounts the debit is
	// conditional: applied is false and nothing is written when the
	// balance cannot cover it. On success the entry's BalanceAfter is
	// filled in and the new balance returned.
	Apply(ctx context.Context, entry *domain.WalletLogEntry) (newBalance int64, applied bool, err error)

	// Balance returns the current committed balance for a vehicle.
	Balance(ctx context.Context, vehicleID string) (int64, error)

	// ListByVehicle returns all ledger entries for a vehicle, oldest first.
	ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.WalletLogEntry, error)
}
