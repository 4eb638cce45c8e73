package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// NewVehicleRepositoryWithTx creates a vehicle repository using a transaction.
func NewVehicleRepositoryWithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{q: tx}
}

const vehicleColumns = `id, COALESCE(driver_name, ''), COALESCE(phone, ''), COALESCE(plate, ''),
	status, tier, balance, missed_offers, suspended_until, delinquent, last_lat, last_lng`

// Create adds a new vehicle.
func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, driver_name, phone, plate, status, tier, balance,
			missed_offers, suspended_until, delinquent, last_lat, last_lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		v.ID, v.DriverName, v.Phone, v.Plate,
		string(v.Status), string(v.Tier), v.Balance,
		v.MissedOffers, nullTime(v.SuspendedUntil), v.Delinquent,
		v.LastLat, v.LastLng,
	)
	return err
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`

	v, err := scanVehicle(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetAll retrieves all vehicles.
func (r *VehicleRepository) GetAll(ctx context.Context) ([]*domain.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// UpdateStatus updates the status of a vehicle.
func (r *VehicleRepository) UpdateStatus(ctx context.Context, id string, status domain.VehicleStatus) error {
	return r.exec(ctx, `UPDATE vehicles SET status = $1 WHERE id = $2`, string(status), id)
}

// ClaimStatus flips the status only when the vehicle still holds the expected
// one. The WHERE clause is the compare-and-set; zero rows on an existing
// vehicle means another writer won.
func (r *VehicleRepository) ClaimStatus(ctx context.Context, id string, from, to domain.VehicleStatus) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE vehicles SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// UpdateLocation stores a vehicle's last known position.
func (r *VehicleRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	return r.exec(ctx, `UPDATE vehicles SET last_lat = $1, last_lng = $2 WHERE id = $3`, lat, lng, id)
}

// UpdatePenalty writes the missed-offer count and suspension window.
func (r *VehicleRepository) UpdatePenalty(ctx context.Context, id string, missed int, suspendedUntil time.Time) error {
	return r.exec(ctx, `UPDATE vehicles SET missed_offers = $1, suspended_until = $2 WHERE id = $3`,
		missed, nullTime(suspendedUntil), id)
}

// SetDelinquent flags or clears the delinquency marker.
func (r *VehicleRepository) SetDelinquent(ctx context.Context, id string, delinquent bool) error {
	return r.exec(ctx, `UPDATE vehicles SET delinquent = $1 WHERE id = $2`, delinquent, id)
}

func (r *VehicleRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanVehicle(row rowScanner) (*domain.Vehicle, error) {
	var v domain.Vehicle
	var status, tier string
	var suspendedUntil sql.NullTime

	err := row.Scan(
		&v.ID, &v.DriverName, &v.Phone, &v.Plate,
		&status, &tier, &v.Balance, &v.MissedOffers, &suspendedUntil,
		&v.Delinquent, &v.LastLat, &v.LastLng,
	)
	if err != nil {
		return nil, err
	}

	// Reject unknown enum values at the persistence boundary.
	if v.Status, err = domain.ParseVehicleStatus(status); err != nil {
		return nil, err
	}
	if v.Tier, err = domain.ParseVehicleTier(tier); err != nil {
		return nil, err
	}
	v.SuspendedUntil = timeOrZero(suspendedUntil)

	return &v, nil
}
