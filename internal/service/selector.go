package service

import (
	"context"
	"sort"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// CandidateSelector produces the next eligible vehicle for an order's offer
// sequence. Ordering: priority tier first (internal fleet preferred), then
// distance from pickup, then missed-offer count.
type CandidateSelector struct {
	vehicleRepo   repository.VehicleRepository
	locationStore redis.LocationStoreInterface
	radiusKm      float64
	now           func() time.Time
}

// NewCandidateSelector creates a new CandidateSelector.
func NewCandidateSelector(
	vehicleRepo repository.VehicleRepository,
	locationStore redis.LocationStoreInterface,
	cfg config.DispatchConfig,
) *CandidateSelector {
	return &CandidateSelector{
		vehicleRepo:   vehicleRepo,
		locationStore: locationStore,
		radiusKm:      cfg.SearchRadiusKm,
		now:           time.Now,
	}
}

type candidate struct {
	vehicle    *domain.Vehicle
	distanceKm float64
}

// Next returns the best remaining candidate for the order. Returns
// ErrPoolExhausted when no eligible vehicle remains; the scheduler handles
// that by parking the order for manual dispatch.
func (s *CandidateSelector) Next(ctx context.Context, order *domain.Order, excluded map[string]bool) (*domain.Vehicle, error) {
	vehicles, err := s.vehicleRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// Prefer live positions from the GEO index; fall back to the last
	// known position persisted with the vehicle.
	live := make(map[string]domain.LatLng)
	if s.locationStore != nil {
		locs, err := s.locationStore.FindNearbyVehicles(ctx, order.Pickup.Lat, order.Pickup.Lng, s.radiusKm)
		if err == nil {
			for _, loc := range locs {
				live[loc.VehicleID] = domain.LatLng{Lat: loc.Lat, Lng: loc.Lng}
			}
		}
	}

	now := s.now()
	candidates := make([]candidate, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Status != domain.VehicleStatusIdle {
			continue
		}
		if v.Suspended(now) {
			continue
		}
		if excluded[v.ID] {
			continue
		}
		if order.Tier != "" && v.Tier != order.Tier {
			continue
		}

		pos := domain.LatLng{Lat: v.LastLat, Lng: v.LastLng}
		if p, ok := live[v.ID]; ok {
			pos = p
		}
		candidates = append(candidates, candidate{
			vehicle:    v,
			distanceKm: HaversineKm(order.Pickup, pos),
		})
	}

	if len(candidates) == 0 {
		return nil, ErrPoolExhausted
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ra, rb := domain.TierRank(a.vehicle.Tier), domain.TierRank(b.vehicle.Tier)
		if ra != rb {
			return ra < rb
		}
		if a.distanceKm != b.distanceKm {
			return a.distanceKm < b.distanceKm
		}
		if a.vehicle.MissedOffers != b.vehicle.MissedOffers {
			return a.vehicle.MissedOffers < b.vehicle.MissedOffers
		}
		return a.vehicle.ID < b.vehicle.ID
	})

	return candidates[0].vehicle, nil
}
