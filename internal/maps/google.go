package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// Estimator resolves distance/ETA estimates through the Google Maps
// Directions API. It satisfies service.Estimator and is selected over the
// haversine stub when an API key is configured.
type Estimator struct {
	client *maps.Client
}

// NewEstimator creates a new Maps-backed estimator with the given API key.
func NewEstimator(apiKey string) (*Estimator, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Estimator{client: client}, nil
}

// Estimate fetches the driving route from origin to destination.
func (e *Estimator) Estimate(ctx context.Context, from, to domain.LatLng) (service.Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := e.client.Directions(ctx, r)
	if err != nil {
		return service.Estimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return service.Estimate{}, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return service.Estimate{
		DistanceKm:  float64(leg.Distance.Meters) / 1000,
		DurationMin: leg.Duration.Minutes(),
	}, nil
}

var _ service.Estimator = (*Estimator)(nil)
