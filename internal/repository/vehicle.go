package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// VehicleRepository defines the persistence operations for vehicles.
//
// Balance is never written through this interface; all balance mutation goes
// through WalletRepository so the ledger invariant holds.
type VehicleRepository interface {
	// Create adds a new vehicle.
	Create(ctx context.Context, vehicle *domain.Vehicle) error

	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// GetAll retrieves all vehicles.
	GetAll(ctx context.Context) ([]*domain.Vehicle, error)

	// UpdateStatus updates the status of a vehicle.
	UpdateStatus(ctx context.Context, id string, status domain.VehicleStatus) error

	// ClaimStatus flips the status only when the vehicle still holds the
	// expected one. Returns ErrConflict when a concurrent writer got there
	// first.
	ClaimStatus(ctx context.Context, id string, from, to domain.VehicleStatus) error

	// UpdateLocation stores a vehicle's last known position.
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error

	// UpdatePenalty writes the missed-offer count and suspension window.
	// A zero suspendedUntil clears the suspension.
	UpdatePenalty(ctx context.Context, id string, missed int, suspendedUntil time.Time) error

	// SetDelinquent flags or clears the delinquency marker.
	SetDelinquent(ctx context.Context, id string, delinquent bool) error
}
