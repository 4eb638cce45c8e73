package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// FleetService manages vehicle registration, live location and availability.
type FleetService struct {
	vehicleRepo   repository.VehicleRepository
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	now           func() time.Time
}

// NewFleetService creates a new FleetService. locationStore and cacheStore
// may be nil.
func NewFleetService(
	vehicleRepo repository.VehicleRepository,
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
) *FleetService {
	return &FleetService{
		vehicleRepo:   vehicleRepo,
		locationStore: locationStore,
		cacheStore:    cacheStore,
		now:           time.Now,
	}
}

// RegisterVehicleInput carries the fields needed to register a vehicle.
type RegisterVehicleInput struct {
	DriverName string
	Phone      string
	Plate      string
	Tier       domain.VehicleTier
}

// Register adds a new vehicle to the fleet. Vehicles join OFFLINE and come
// online with their first location report.
func (s *FleetService) Register(ctx context.Context, in RegisterVehicleInput) (*domain.Vehicle, error) {
	vehicle := &domain.Vehicle{
		ID:         uuid.New().String(),
		DriverName: in.DriverName,
		Phone:      in.Phone,
		Plate:      in.Plate,
		Status:     domain.VehicleStatusOffline,
		Tier:       in.Tier,
	}
	if vehicle.Tier == "" {
		vehicle.Tier = domain.VehicleTierPartner
	}
	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// GetByID retrieves a vehicle.
func (s *FleetService) GetByID(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	if vehicleID == "" {
		return nil, ErrInvalidVehicleID
	}
	return s.vehicleRepo.GetByID(ctx, vehicleID)
}

// GetAll retrieves all vehicles.
func (s *FleetService) GetAll(ctx context.Context) ([]*domain.Vehicle, error) {
	return s.vehicleRepo.GetAll(ctx)
}

// ReportLocation records a vehicle's position in the live GEO index and as
// its persisted last known position. A BUSY vehicle stays BUSY; otherwise
// the report brings the vehicle to IDLE.
func (s *FleetService) ReportLocation(ctx context.Context, vehicleID string, lat, lng float64) error {
	if vehicleID == "" {
		return ErrInvalidVehicleID
	}
	if !validLatLng(domain.LatLng{Lat: lat, Lng: lng}) {
		return ErrInvalidLocation
	}

	vehicle, err := s.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}

	if err := s.vehicleRepo.UpdateLocation(ctx, vehicleID, lat, lng); err != nil {
		return err
	}
	if s.locationStore != nil {
		if err := s.locationStore.UpdateLocation(ctx, vehicleID, lat, lng); err != nil {
			log.Printf("fleet: geo update for %s: %v", vehicleID, err)
		}
	}

	if vehicle.Status == domain.VehicleStatusOffline {
		if err := s.vehicleRepo.UpdateStatus(ctx, vehicleID, domain.VehicleStatusIdle); err != nil {
			return err
		}
	}
	s.invalidateVehicle(ctx, vehicleID)
	return nil
}

// GoOffline removes the vehicle from the live index and marks it OFFLINE. A
// vehicle holding an assignment cannot go offline.
func (s *FleetService) GoOffline(ctx context.Context, vehicleID string) error {
	if vehicleID == "" {
		return ErrInvalidVehicleID
	}

	vehicle, err := s.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicle.Status == domain.VehicleStatusBusy {
		return ErrVehicleBusy
	}

	if err := s.vehicleRepo.UpdateStatus(ctx, vehicleID, domain.VehicleStatusOffline); err != nil {
		return err
	}
	if s.locationStore != nil {
		if err := s.locationStore.RemoveLocation(ctx, vehicleID); err != nil {
			log.Printf("fleet: geo remove for %s: %v", vehicleID, err)
		}
	}
	s.invalidateVehicle(ctx, vehicleID)
	return nil
}

func (s *FleetService) invalidateVehicle(ctx context.Context, vehicleID string) {
	if s.cacheStore != nil {
		s.cacheStore.InvalidateVehicle(ctx, vehicleID)
	}
}
