package service

import (
	"context"
	"math"

	"dispatch/internal/config"
	"dispatch/internal/domain"
)

// Estimate is a distance/duration projection between two points.
type Estimate struct {
	DistanceKm  float64
	DurationMin float64
}

// Estimator resolves a distance/ETA estimate between two locations. Any
// implementation may back this: the haversine stub below, or a routing API.
type Estimator interface {
	Estimate(ctx context.Context, from, to domain.LatLng) (Estimate, error)
}

// HaversineEstimator approximates road distance as great-circle distance
// times a winding factor, and duration from an assumed average speed.
type HaversineEstimator struct {
	windingFactor float64
	avgSpeedKmh   float64
}

// NewHaversineEstimator creates a new HaversineEstimator.
func NewHaversineEstimator(cfg config.FareConfig) *HaversineEstimator {
	winding := cfg.WindingFactor
	if winding <= 0 {
		winding = 1.3
	}
	speed := cfg.AvgSpeedKmh
	if speed <= 0 {
		speed = 30
	}
	return &HaversineEstimator{windingFactor: winding, avgSpeedKmh: speed}
}

// Estimate computes the estimate. It never fails.
func (e *HaversineEstimator) Estimate(_ context.Context, from, to domain.LatLng) (Estimate, error) {
	km := HaversineKm(from, to) * e.windingFactor
	return Estimate{
		DistanceKm:  km,
		DurationMin: km / e.avgSpeedKmh * 60,
	}, nil
}

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b domain.LatLng) float64 {
	const earthRadiusKm = 6371.0

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

var _ Estimator = (*HaversineEstimator)(nil)
