package postgres

import (
	"context"
	"database/sql"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// WalletRepository is a PostgreSQL implementation of repository.WalletRepository.
//
// Apply owns its own transaction: the conditional balance update on the
// vehicles row and the ledger INSERT commit or fail as one unit.
type WalletRepository struct {
	db *sql.DB
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Apply commits a ledger entry atomically.
func (r *WalletRepository) Apply(ctx context.Context, entry *domain.WalletLogEntry) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Debits only apply when the balance covers them; the WHERE clause is
	// the check-then-apply in one statement.
	var newBalance int64
	row := tx.QueryRowContext(ctx, `
		UPDATE vehicles
		SET balance = balance + $1
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`,
		entry.Amount, entry.VehicleID,
	)
	if err = row.Scan(&newBalance); err != nil {
		if err == sql.ErrNoRows {
			// Either the vehicle is missing or the balance cannot
			// cover the debit; distinguish the two. The deferred
			// rollback discards the transaction in both cases.
			var exists bool
			if scanErr := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)`,
				entry.VehicleID).Scan(&exists); scanErr != nil {
				return 0, false, scanErr
			}
			if !exists {
				return 0, false, repository.ErrNotFound
			}
			return 0, false, nil
		}
		return 0, false, err
	}

	entry.BalanceAfter = newBalance
	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_logs (id, vehicle_id, amount, type, ref_order_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.VehicleID, entry.Amount, string(entry.Type),
		nullString(entry.RefOrderID), entry.BalanceAfter, entry.CreatedAt,
	)
	if err != nil {
		return 0, false, err
	}

	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return newBalance, true, nil
}

// Balance returns the current committed balance for a vehicle.
func (r *WalletRepository) Balance(ctx context.Context, vehicleID string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM vehicles WHERE id = $1`, vehicleID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ListByVehicle returns all ledger entries for a vehicle, oldest first.
func (r *WalletRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.WalletLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vehicle_id, amount, type, COALESCE(ref_order_id, ''), balance_after, created_at
		FROM wallet_logs WHERE vehicle_id = $1 ORDER BY created_at, id`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.WalletLogEntry
	for rows.Next() {
		var e domain.WalletLogEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.Amount, &entryType,
			&e.RefOrderID, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Type, err = domain.ParseWalletEntryType(entryType); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
