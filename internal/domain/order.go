package domain

import (
	"fmt"
	"time"
)

// OrderStatus represents the current status of an order.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "PENDING"
	OrderStatusDispatching OrderStatus = "DISPATCHING"
	OrderStatusAssigned    OrderStatus = "ASSIGNED"
	OrderStatusPickingUp   OrderStatus = "PICKING_UP"
	OrderStatusInTransit   OrderStatus = "IN_TRANSIT"
	OrderStatusCompleted   OrderStatus = "COMPLETED"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
)

// ParseOrderStatus validates a status string read from the persistence
// boundary. Unknown values are rejected, not passed through.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusDispatching, OrderStatusAssigned,
		OrderStatusPickingUp, OrderStatusInTransit, OrderStatusCompleted,
		OrderStatusCancelled:
		return OrderStatus(s), nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64
	Lng float64
}

// Order represents a ride request in the system.
//
// Dispatch bookkeeping (CandidateIndex, OfferedVehicleID, OfferExpiresAt) is
// per-order state owned by that order's scheduler goroutine; there is no
// shared "current driver" anywhere.
type Order struct {
	ID          string // stable unique id (UUID)
	DisplayCode string // cosmetic short code, collision-tolerant
	Pickup      LatLng
	Destination *LatLng
	Status      OrderStatus
	Tier        VehicleTier // requested tier; empty means any
	Price       int64       // whole currency units, mutable until finalized
	WaitingFee  int64       // frozen at boarding; accrues while waiting
	Commission  int64       // set only once status reaches COMPLETED
	VehicleID   string      // set iff ASSIGNED or later

	CandidateIndex   int       // position in the ordered candidate sequence
	OfferedVehicleID string    // vehicle holding the current offer, if any
	OfferExpiresAt   time.Time // end of the current offer window
	PoolExhausted    bool      // dispatch ran out of candidates; needs manual action

	WaitingStartedAt time.Time // driver arrived, passenger not yet aboard
	BoardedAt        time.Time

	CreatedAt    time.Time
	CompletedAt  time.Time
	CancelledAt  time.Time
	CancelReason string
}
