package service

import (
	"context"
	"log"
	"sync"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/repository"
)

// PenaltyTracker accumulates missed offers per vehicle and suspends vehicles
// that hit the miss threshold. A successful acceptance wipes the count.
// Updates for the same vehicle are serialized in-process; two orders timing
// out on the same vehicle at once must both count.
type PenaltyTracker struct {
	vehicleRepo     repository.VehicleRepository
	missThreshold   int
	suspendDuration time.Duration
	now             func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPenaltyTracker creates a new PenaltyTracker.
func NewPenaltyTracker(vehicleRepo repository.VehicleRepository, cfg config.DispatchConfig) *PenaltyTracker {
	return &PenaltyTracker{
		vehicleRepo:     vehicleRepo,
		missThreshold:   cfg.MissThreshold,
		suspendDuration: cfg.SuspendDuration,
		now:             time.Now,
		locks:           make(map[string]*sync.Mutex),
	}
}

// RecordMiss increments the vehicle's missed-offer count and suspends it once
// the count reaches the threshold. The count is not cleared on suspension, so
// a vehicle that keeps timing out after its suspension lapses is suspended
// again on the very next miss.
func (t *PenaltyTracker) RecordMiss(ctx context.Context, vehicleID string) error {
	lock := t.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	vehicle, err := t.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}

	missed := vehicle.MissedOffers + 1
	suspendedUntil := vehicle.SuspendedUntil
	if missed >= t.missThreshold {
		suspendedUntil = t.now().Add(t.suspendDuration)
		log.Printf("vehicle %s suspended until %s after %d missed offers",
			vehicleID, suspendedUntil.Format(time.RFC3339), missed)
	}

	return t.vehicleRepo.UpdatePenalty(ctx, vehicleID, missed, suspendedUntil)
}

// Forgive clears the vehicle's missed-offer count after a successful
// acceptance. An active suspension is left in place.
func (t *PenaltyTracker) Forgive(ctx context.Context, vehicleID string) error {
	lock := t.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	vehicle, err := t.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicle.MissedOffers == 0 {
		return nil
	}
	return t.vehicleRepo.UpdatePenalty(ctx, vehicleID, 0, vehicle.SuspendedUntil)
}

// IsSuspended reports whether the vehicle is currently suspended from offers.
func (t *PenaltyTracker) IsSuspended(ctx context.Context, vehicleID string) (bool, error) {
	vehicle, err := t.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	return vehicle.Suspended(t.now()), nil
}

func (t *PenaltyTracker) lockFor(vehicleID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[vehicleID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[vehicleID] = lock
	}
	return lock
}
