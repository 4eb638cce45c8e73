package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/service"
)

func idleVehicle(id string, tier domain.VehicleTier, lat, lng float64) *domain.Vehicle {
	return &domain.Vehicle{
		ID:      id,
		Status:  domain.VehicleStatusIdle,
		Tier:    tier,
		LastLat: lat,
		LastLng: lng,
	}
}

func pickupOrder() *domain.Order {
	return &domain.Order{
		ID:     "order-1",
		Status: domain.OrderStatusDispatching,
		Pickup: domain.LatLng{Lat: 25.0330, Lng: 121.5654},
	}
}

func TestCandidateSelector_PrefersInternalTier(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	// Partner is much closer, but internal fleet outranks partners.
	vehicleRepo.AddVehicle(idleVehicle("partner-near", domain.VehicleTierPartner, 25.0331, 121.5655))
	vehicleRepo.AddVehicle(idleVehicle("internal-far", domain.VehicleTierInternal, 25.1000, 121.6000))

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "internal-far" {
		t.Errorf("expected internal-far, got %s", got.ID)
	}
}

func TestCandidateSelector_DistanceBreaksTierTies(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	vehicleRepo.AddVehicle(idleVehicle("far", domain.VehicleTierPartner, 25.2000, 121.7000))
	vehicleRepo.AddVehicle(idleVehicle("near", domain.VehicleTierPartner, 25.0340, 121.5660))

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "near" {
		t.Errorf("expected near, got %s", got.ID)
	}
}

func TestCandidateSelector_LivePositionOverridesLastKnown(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	// Persisted positions say "a" is closer, but the live index has "b"
	// right at the pickup.
	vehicleRepo.AddVehicle(idleVehicle("a", domain.VehicleTierPartner, 25.0340, 121.5660))
	vehicleRepo.AddVehicle(idleVehicle("b", domain.VehicleTierPartner, 25.3000, 121.9000))
	locationStore.SetLocations([]redis.VehicleLocation{
		{VehicleID: "b", Lat: 25.0330, Lng: 121.5654},
	})

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "b" {
		t.Errorf("expected b (live position at pickup), got %s", got.ID)
	}
}

func TestCandidateSelector_FallsBackWhenGeoIndexFails(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	locationStore.FindError = errors.New("redis down")
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	vehicleRepo.AddVehicle(idleVehicle("near", domain.VehicleTierPartner, 25.0340, 121.5660))
	vehicleRepo.AddVehicle(idleVehicle("far", domain.VehicleTierPartner, 25.2000, 121.7000))

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "near" {
		t.Errorf("expected near via last known position, got %s", got.ID)
	}
}

func TestCandidateSelector_FiltersIneligibleVehicles(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	busy := idleVehicle("busy", domain.VehicleTierInternal, 25.0330, 121.5654)
	busy.Status = domain.VehicleStatusBusy
	offline := idleVehicle("offline", domain.VehicleTierInternal, 25.0330, 121.5654)
	offline.Status = domain.VehicleStatusOffline
	suspended := idleVehicle("suspended", domain.VehicleTierInternal, 25.0330, 121.5654)
	suspended.SuspendedUntil = time.Now().Add(time.Hour)
	eligible := idleVehicle("eligible", domain.VehicleTierLineBroadcast, 25.2000, 121.7000)

	vehicleRepo.AddVehicle(busy)
	vehicleRepo.AddVehicle(offline)
	vehicleRepo.AddVehicle(suspended)
	vehicleRepo.AddVehicle(eligible)

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "eligible" {
		t.Errorf("expected eligible, got %s", got.ID)
	}
}

func TestCandidateSelector_LapsedSuspensionIsEligible(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	lapsed := idleVehicle("lapsed", domain.VehicleTierPartner, 25.0330, 121.5654)
	lapsed.SuspendedUntil = time.Now().Add(-time.Minute)
	vehicleRepo.AddVehicle(lapsed)

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "lapsed" {
		t.Errorf("expected lapsed, got %s", got.ID)
	}
}

func TestCandidateSelector_SkipsExcluded(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	vehicleRepo.AddVehicle(idleVehicle("first", domain.VehicleTierPartner, 25.0330, 121.5654))
	vehicleRepo.AddVehicle(idleVehicle("second", domain.VehicleTierPartner, 25.0400, 121.5700))

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{"first": true})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "second" {
		t.Errorf("expected second, got %s", got.ID)
	}
}

func TestCandidateSelector_MissedOffersBreakFinalTies(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	flaky := idleVehicle("flaky", domain.VehicleTierPartner, 25.0330, 121.5654)
	flaky.MissedOffers = 2
	reliable := idleVehicle("reliable", domain.VehicleTierPartner, 25.0330, 121.5654)
	vehicleRepo.AddVehicle(flaky)
	vehicleRepo.AddVehicle(reliable)

	got, err := selector.Next(ctx, pickupOrder(), map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "reliable" {
		t.Errorf("expected reliable, got %s", got.ID)
	}
}

func TestCandidateSelector_RequestedTierOnly(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	vehicleRepo.AddVehicle(idleVehicle("internal", domain.VehicleTierInternal, 25.0330, 121.5654))
	vehicleRepo.AddVehicle(idleVehicle("partner", domain.VehicleTierPartner, 25.0330, 121.5654))

	order := pickupOrder()
	order.Tier = domain.VehicleTierPartner

	got, err := selector.Next(ctx, order, map[string]bool{})
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got.ID != "partner" {
		t.Errorf("expected partner, got %s", got.ID)
	}
}

func TestCandidateSelector_PoolExhausted(t *testing.T) {
	ctx := context.Background()
	vehicleRepo := NewMockVehicleRepository()
	locationStore := NewMockLocationStore()
	selector := service.NewCandidateSelector(vehicleRepo, locationStore, testDispatchConfig())

	only := idleVehicle("only", domain.VehicleTierPartner, 25.0330, 121.5654)
	vehicleRepo.AddVehicle(only)

	_, err := selector.Next(ctx, pickupOrder(), map[string]bool{"only": true})
	if !errors.Is(err, service.ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}
