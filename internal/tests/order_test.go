package tests

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func newOrderService(estimator service.Estimator) (*service.OrderService, *MockOrderRepository) {
	orderRepo := NewMockOrderRepository()
	fare := service.NewFareEngine(testFareConfig(), testDispatchConfig())
	plans := service.NewStaticPlanSource(testPlanConfig())
	return service.NewOrderService(orderRepo, fare, estimator, plans, nil), orderRepo
}

func TestOrderService_CreateQuotesUpFront(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo := newOrderService(&MockEstimator{DistanceKm: 10, DurationMin: 20})

	dest := domain.LatLng{Lat: 25.0478, Lng: 121.5319}
	order, err := svc.Create(ctx, service.CreateOrderInput{
		Pickup:      domain.LatLng{Lat: 25.0330, Lng: 121.5654},
		Destination: &dest,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", order.Status)
	}
	if order.Price != 435 && order.Price != 455 {
		t.Errorf("expected up-front quote, got %d", order.Price)
	}
	if !regexp.MustCompile(`^D-\d{4}$`).MatchString(order.DisplayCode) {
		t.Errorf("unexpected display code %q", order.DisplayCode)
	}
	if orderRepo.GetOrder(order.ID) == nil {
		t.Error("expected order persisted")
	}
}

func TestOrderService_CreateSurvivesEstimatorOutage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOrderService(&MockEstimator{EstimateError: errors.New("upstream timeout")})

	dest := domain.LatLng{Lat: 25.0478, Lng: 121.5319}
	order, err := svc.Create(ctx, service.CreateOrderInput{
		Pickup:      domain.LatLng{Lat: 25.0330, Lng: 121.5654},
		Destination: &dest,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// Unpriced, repriced at trip start once the estimator recovers.
	if order.Price != 0 {
		t.Errorf("expected zero price, got %d", order.Price)
	}
}

func TestOrderService_CreateRejectsBadCoordinates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOrderService(&MockEstimator{})

	_, err := svc.Create(ctx, service.CreateOrderInput{
		Pickup: domain.LatLng{Lat: 91, Lng: 0},
	})
	if !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestParseAcceptReply(t *testing.T) {
	cases := []struct {
		text     string
		wantCode string
		wantOK   bool
	}{
		{"accept D-0042", "D-0042", true},
		{"接單 D-0042", "D-0042", true},
		{"接单 D-0042", "D-0042", true},
		{"take d-0042", "D-0042", true},
		{"D-0042", "D-0042", true},
		{"  D-0042  ", "D-0042", true},
		{"D-42", "", false},
		{"what's my ETA?", "", false},
		{"accept", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		code, ok := service.ParseAcceptReply(tc.text)
		if ok != tc.wantOK || code != tc.wantCode {
			t.Errorf("ParseAcceptReply(%q) = (%q, %v), want (%q, %v)",
				tc.text, code, ok, tc.wantCode, tc.wantOK)
		}
	}
}

func TestHaversineEstimator(t *testing.T) {
	ctx := context.Background()
	estimator := service.NewHaversineEstimator(testFareConfig())

	// Taipei Main Station to Taipei 101 is roughly 4 km great circle.
	from := domain.LatLng{Lat: 25.0478, Lng: 121.5170}
	to := domain.LatLng{Lat: 25.0330, Lng: 121.5654}

	est, err := estimator.Estimate(ctx, from, to)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	// Winding factor 1.3 on ~5.1 km straight line.
	if est.DistanceKm < 5 || est.DistanceKm > 9 {
		t.Errorf("unexpected road distance %f", est.DistanceKm)
	}
	// 30 km/h average speed.
	wantMin := est.DistanceKm / 30 * 60
	if est.DurationMin < wantMin-0.01 || est.DurationMin > wantMin+0.01 {
		t.Errorf("expected duration %f, got %f", wantMin, est.DurationMin)
	}
}
