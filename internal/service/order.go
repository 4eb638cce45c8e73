package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// OrderService handles order creation and retrieval.
type OrderService struct {
	orderRepo  repository.OrderRepository
	fare       *FareEngine
	estimator  Estimator
	plans      PlanSource
	cacheStore *redis.CacheStore
	now        func() time.Time
}

// NewOrderService creates a new OrderService. cacheStore may be nil.
func NewOrderService(
	orderRepo repository.OrderRepository,
	fare *FareEngine,
	estimator Estimator,
	plans PlanSource,
	cacheStore *redis.CacheStore,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		fare:       fare,
		estimator:  estimator,
		plans:      plans,
		cacheStore: cacheStore,
		now:        time.Now,
	}
}

// CreateOrderInput carries the fields needed to create a new order.
type CreateOrderInput struct {
	Pickup      domain.LatLng
	Destination *domain.LatLng
	Tier        domain.VehicleTier // empty means any tier
}

// Create persists a new PENDING order. When a destination is known the price
// is quoted up front; the quote is provisional and is refreshed at trip
// start. A failed estimate at creation leaves the price at zero rather than
// rejecting the order.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if !validLatLng(in.Pickup) {
		return nil, ErrInvalidLocation
	}
	if in.Destination != nil && !validLatLng(*in.Destination) {
		return nil, ErrInvalidLocation
	}

	id := uuid.New().String()
	order := &domain.Order{
		ID:          id,
		DisplayCode: displayCode(id),
		Pickup:      in.Pickup,
		Destination: in.Destination,
		Status:      domain.OrderStatusPending,
		Tier:        in.Tier,
		CreatedAt:   s.now(),
	}

	if in.Destination != nil {
		if price, err := s.quote(ctx, order); err == nil {
			order.Price = price
		} else {
			log.Printf("order %s: initial quote failed: %v", id, err)
		}
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetByID retrieves an order.
func (s *OrderService) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

// GetAll retrieves all orders.
func (s *OrderService) GetAll(ctx context.Context) ([]*domain.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

func (s *OrderService) quote(ctx context.Context, order *domain.Order) (int64, error) {
	est, err := s.estimator.Estimate(ctx, order.Pickup, *order.Destination)
	if err != nil {
		return 0, err
	}
	plan, err := s.plans.PlanFor(ctx, order)
	if err != nil {
		return 0, err
	}
	return s.fare.Quote(est.DistanceKm, est.DurationMin, plan, s.fare.IsNight(s.now()))
}

// displayCode derives a short human-facing code from the order's UUID. Codes
// are cosmetic and may collide; resolution always prefers the newest
// dispatching match.
func displayCode(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return "D-0000"
	}
	b := u[:]
	n := (uint16(b[14])<<8 | uint16(b[15])) % 10000
	return fmt.Sprintf("D-%04d", n)
}

func validLatLng(p domain.LatLng) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
