package domain

import (
	"fmt"
	"time"
)

// VehicleStatus represents the current status of a dispatchable vehicle.
type VehicleStatus string

const (
	VehicleStatusIdle    VehicleStatus = "IDLE"
	VehicleStatusBusy    VehicleStatus = "BUSY"
	VehicleStatusOffline VehicleStatus = "OFFLINE"
)

// VehicleTier classifies a vehicle for candidate ordering. Internal fleet is
// preferred over partners, partners over the ad-hoc broadcast pool.
type VehicleTier string

const (
	VehicleTierInternal      VehicleTier = "INTERNAL"
	VehicleTierPartner       VehicleTier = "PARTNER"
	VehicleTierLineBroadcast VehicleTier = "LINE_BROADCAST"
)

// TierRank returns the ordering rank of a tier; lower is offered first.
func TierRank(t VehicleTier) int {
	switch t {
	case VehicleTierInternal:
		return 0
	case VehicleTierPartner:
		return 1
	case VehicleTierLineBroadcast:
		return 2
	default:
		return 3
	}
}

// ParseVehicleStatus validates a status string at the persistence boundary.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	switch VehicleStatus(s) {
	case VehicleStatusIdle, VehicleStatusBusy, VehicleStatusOffline:
		return VehicleStatus(s), nil
	default:
		return "", fmt.Errorf("unknown vehicle status %q", s)
	}
}

// ParseVehicleTier validates a tier string at the persistence boundary.
func ParseVehicleTier(s string) (VehicleTier, error) {
	switch VehicleTier(s) {
	case VehicleTierInternal, VehicleTierPartner, VehicleTierLineBroadcast:
		return VehicleTier(s), nil
	default:
		return "", fmt.Errorf("unknown vehicle tier %q", s)
	}
}

// Vehicle represents a dispatchable driver unit.
//
// Balance is a cached projection of the wallet ledger and is mutated only
// through the WalletLedger; it must never go negative.
type Vehicle struct {
	ID         string
	DriverName string
	Phone      string
	Plate      string
	Status     VehicleStatus
	Tier       VehicleTier
	Balance    int64

	MissedOffers   int
	SuspendedUntil time.Time // zero means not suspended
	Delinquent     bool      // commission deduction failed at settlement

	LastLat float64
	LastLng float64
}

// Suspended reports whether the vehicle is ineligible for new offers at now.
// Eligibility returns exactly at SuspendedUntil.
func (v *Vehicle) Suspended(now time.Time) bool {
	return !v.SuspendedUntil.IsZero() && now.Before(v.SuspendedUntil)
}
