package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `id, display_code, pickup_lat, pickup_lng, dest_lat, dest_lng,
	status, tier, price, waiting_fee, commission, vehicle_id,
	candidate_index, offered_vehicle_id, offer_expires_at, pool_exhausted,
	waiting_started_at, boarded_at, created_at, completed_at, cancelled_at, cancel_reason`

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	var destLat, destLng sql.NullFloat64
	if o.Destination != nil {
		destLat = sql.NullFloat64{Float64: o.Destination.Lat, Valid: true}
		destLng = sql.NullFloat64{Float64: o.Destination.Lng, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		o.ID,
		o.DisplayCode,
		o.Pickup.Lat,
		o.Pickup.Lng,
		destLat,
		destLng,
		string(o.Status),
		nullString(string(o.Tier)),
		o.Price,
		o.WaitingFee,
		o.Commission,
		nullString(o.VehicleID),
		o.CandidateIndex,
		nullString(o.OfferedVehicleID),
		nullTime(o.OfferExpiresAt),
		o.PoolExhausted,
		nullTime(o.WaitingStartedAt),
		nullTime(o.BoardedAt),
		o.CreatedAt,
		nullTime(o.CompletedAt),
		nullTime(o.CancelledAt),
		nullString(o.CancelReason),
	)
	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetDispatchingByDisplayCode retrieves the newest DISPATCHING order with the
// given display code.
func (r *OrderRepository) GetDispatchingByDisplayCode(ctx context.Context, code string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE display_code = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, code, string(domain.OrderStatusDispatching)))
}

// GetAll retrieves all orders.
func (r *OrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Update updates an existing order.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	query := `
		UPDATE orders SET
			dest_lat = $1, dest_lng = $2, status = $3, price = $4,
			waiting_fee = $5, commission = $6, vehicle_id = $7,
			candidate_index = $8, offered_vehicle_id = $9, offer_expires_at = $10,
			pool_exhausted = $11, waiting_started_at = $12, boarded_at = $13,
			completed_at = $14, cancelled_at = $15, cancel_reason = $16
		WHERE id = $17
	`

	var destLat, destLng sql.NullFloat64
	if o.Destination != nil {
		destLat = sql.NullFloat64{Float64: o.Destination.Lat, Valid: true}
		destLng = sql.NullFloat64{Float64: o.Destination.Lng, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		destLat,
		destLng,
		string(o.Status),
		o.Price,
		o.WaitingFee,
		o.Commission,
		nullString(o.VehicleID),
		o.CandidateIndex,
		nullString(o.OfferedVehicleID),
		nullTime(o.OfferExpiresAt),
		o.PoolExhausted,
		nullTime(o.WaitingStartedAt),
		nullTime(o.BoardedAt),
		nullTime(o.CompletedAt),
		nullTime(o.CancelledAt),
		nullString(o.CancelReason),
		o.ID,
	)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OrderRepository) scanOne(row *sql.Row) (*domain.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var destLat, destLng sql.NullFloat64
	var status string
	var tier, vehicleID, offeredVehicleID, cancelReason sql.NullString
	var offerExpiresAt, waitingStartedAt, boardedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.DisplayCode, &o.Pickup.Lat, &o.Pickup.Lng, &destLat, &destLng,
		&status, &tier, &o.Price, &o.WaitingFee, &o.Commission, &vehicleID,
		&o.CandidateIndex, &offeredVehicleID, &offerExpiresAt, &o.PoolExhausted,
		&waitingStartedAt, &boardedAt, &o.CreatedAt, &completedAt, &cancelledAt, &cancelReason,
	)
	if err != nil {
		return nil, err
	}

	// Reject unknown status values at the persistence boundary.
	o.Status, err = domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	if destLat.Valid && destLng.Valid {
		o.Destination = &domain.LatLng{Lat: destLat.Float64, Lng: destLng.Float64}
	}
	if tier.Valid && tier.String != "" {
		o.Tier, err = domain.ParseVehicleTier(tier.String)
		if err != nil {
			return nil, err
		}
	}
	o.VehicleID = vehicleID.String
	o.OfferedVehicleID = offeredVehicleID.String
	o.CancelReason = cancelReason.String
	o.OfferExpiresAt = timeOrZero(offerExpiresAt)
	o.WaitingStartedAt = timeOrZero(waitingStartedAt)
	o.BoardedAt = timeOrZero(boardedAt)
	o.CompletedAt = timeOrZero(completedAt)
	o.CancelledAt = timeOrZero(cancelledAt)

	return &o, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func timeOrZero(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}
