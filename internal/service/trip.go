package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/repository/postgres"
)

// PlanSource resolves the pricing plan for an order.
type PlanSource interface {
	PlanFor(ctx context.Context, order *domain.Order) (domain.PricingPlan, error)
}

// StaticPlanSource serves one configured plan for every order.
type StaticPlanSource struct {
	plan domain.PricingPlan
}

// NewStaticPlanSource creates a plan source from the configured rates.
func NewStaticPlanSource(cfg config.PlanConfig) *StaticPlanSource {
	return &StaticPlanSource{plan: domain.PricingPlan{
		Name:           "standard",
		BaseFare:       cfg.BaseFare,
		PerKm:          cfg.PerKm,
		PerMinute:      cfg.PerMinute,
		NightSurcharge: cfg.NightSurcharge,
	}}
}

func (s *StaticPlanSource) PlanFor(ctx context.Context, order *domain.Order) (domain.PricingPlan, error) {
	return s.plan, nil
}

// TripService moves an assigned order through pickup, boarding and
// completion, and settles the platform commission at the end.
type TripService struct {
	orderRepo   repository.OrderRepository
	vehicleRepo repository.VehicleRepository
	ledger      *WalletLedger
	fare        *FareEngine
	estimator   Estimator
	plans       PlanSource
	notifier    Notifier
	events      *EventBus
	cacheStore  *redis.CacheStore
	db          *sql.DB
	now         func() time.Time
}

// NewTripService creates a new TripService. notifier, db and cacheStore may
// be nil.
func NewTripService(
	orderRepo repository.OrderRepository,
	vehicleRepo repository.VehicleRepository,
	ledger *WalletLedger,
	fare *FareEngine,
	estimator Estimator,
	plans PlanSource,
	notifier Notifier,
	events *EventBus,
	cacheStore *redis.CacheStore,
	db *sql.DB,
) *TripService {
	return &TripService{
		orderRepo:   orderRepo,
		vehicleRepo: vehicleRepo,
		ledger:      ledger,
		fare:        fare,
		estimator:   estimator,
		plans:       plans,
		notifier:    notifier,
		events:      events,
		cacheStore:  cacheStore,
		db:          db,
		now:         time.Now,
	}
}

// Start moves an assigned order to PICKING_UP and reprices it from a fresh
// distance and duration estimate. Orders booked without a destination get one
// here, stated by the passenger at pickup. A failed estimate blocks the
// start; the driver retries rather than running the trip unpriced.
func (t *TripService) Start(ctx context.Context, orderID, vehicleID string, dest *domain.LatLng) (*domain.Order, error) {
	order, err := t.loadFor(ctx, orderID, vehicleID, domain.OrderStatusAssigned)
	if err != nil {
		return nil, err
	}
	if dest != nil {
		if !validLatLng(*dest) {
			return nil, ErrInvalidLocation
		}
		d := *dest
		order.Destination = &d
	}
	if order.Destination == nil {
		return nil, ErrInvalidLocation
	}

	est, err := t.estimator.Estimate(ctx, order.Pickup, *order.Destination)
	if err != nil {
		log.Printf("trip order %s: estimate failed: %v", orderID, err)
		return nil, ErrEstimatorUnavailable
	}

	plan, err := t.plans.PlanFor(ctx, order)
	if err != nil {
		return nil, err
	}

	price, err := t.fare.Quote(est.DistanceKm, est.DurationMin, plan, t.fare.IsNight(t.now()))
	if err != nil {
		return nil, err
	}

	order.Price = price
	order.Status = domain.OrderStatusPickingUp
	if err := t.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}
	t.invalidateOrder(ctx, orderID)
	return order, nil
}

// Arrive marks the driver as waiting at the pickup point. The waiting meter
// starts now; fee accrual begins after the grace period.
func (t *TripService) Arrive(ctx context.Context, orderID, vehicleID string) (*domain.Order, error) {
	order, err := t.loadFor(ctx, orderID, vehicleID, domain.OrderStatusPickingUp)
	if err != nil {
		return nil, err
	}
	if !order.WaitingStartedAt.IsZero() {
		// Arrival already recorded; idempotent.
		return order, nil
	}

	order.WaitingStartedAt = t.now()
	if err := t.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}
	t.invalidateOrder(ctx, orderID)
	return order, nil
}

// Board moves the order to IN_TRANSIT and freezes the waiting fee.
func (t *TripService) Board(ctx context.Context, orderID, vehicleID string) (*domain.Order, error) {
	order, err := t.loadFor(ctx, orderID, vehicleID, domain.OrderStatusPickingUp)
	if err != nil {
		return nil, err
	}

	boardedAt := t.now()
	if !order.WaitingStartedAt.IsZero() {
		order.WaitingFee = t.fare.WaitingFee(boardedAt.Sub(order.WaitingStartedAt))
	}
	order.BoardedAt = boardedAt
	order.Status = domain.OrderStatusInTransit
	if err := t.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}
	t.invalidateOrder(ctx, orderID)
	return order, nil
}

// Complete finishes the trip: the final price absorbs the waiting fee, the
// platform commission is deducted from the driver's wallet, and the vehicle
// returns to IDLE. A wallet that cannot cover the commission marks the
// vehicle delinquent for offline collection; the order still completes.
func (t *TripService) Complete(ctx context.Context, orderID, vehicleID string) (*domain.Order, error) {
	order, err := t.loadFor(ctx, orderID, vehicleID, domain.OrderStatusInTransit)
	if err != nil {
		return nil, err
	}

	finalPrice := order.Price + order.WaitingFee
	commission := t.fare.Commission(finalPrice)

	order.Price = finalPrice
	order.Commission = commission
	order.Status = domain.OrderStatusCompleted
	order.CompletedAt = t.now()

	if err := t.settle(ctx, order, vehicleID); err != nil {
		return nil, err
	}

	// Any uncollected commission flags the vehicle for reconciliation, not
	// just an empty wallet. A transient ledger failure here would otherwise
	// vanish into the log.
	if commission > 0 {
		if _, err := t.ledger.Deduct(ctx, vehicleID, commission, domain.WalletEntryCommission, order.ID); err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				log.Printf("trip order %s: vehicle %s cannot cover commission %d, flagging delinquent",
					orderID, vehicleID, commission)
			} else {
				log.Printf("trip order %s: deduct commission %d from %s: %v, flagging delinquent",
					orderID, commission, vehicleID, err)
			}
			if derr := t.vehicleRepo.SetDelinquent(ctx, vehicleID, true); derr != nil {
				log.Printf("trip order %s: flag delinquent %s: %v", orderID, vehicleID, derr)
			}
			if t.notifier != nil {
				t.notifier.NotifyGroup(ctx, fmt.Sprintf(
					"vehicle %s owes commission %d on order %s", vehicleID, commission, order.DisplayCode))
			}
		}
	}

	t.invalidateOrder(ctx, orderID)
	t.invalidateVehicle(ctx, vehicleID)
	if t.events != nil {
		t.events.Publish(DispatchEvent{Type: EventCompleted, OrderID: orderID, VehicleID: vehicleID})
	}
	return order, nil
}

// settle persists the completed order and releases the vehicle, atomically
// when a database handle is present. The commission deduction runs after the
// commit so a ledger failure can never roll back a finished trip.
func (t *TripService) settle(ctx context.Context, order *domain.Order, vehicleID string) error {
	if t.db != nil {
		tx, err := t.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := postgres.NewOrderRepositoryWithTx(tx).Update(ctx, order); err != nil {
			return err
		}
		if err := postgres.NewVehicleRepositoryWithTx(tx).UpdateStatus(ctx, vehicleID, domain.VehicleStatusIdle); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := t.orderRepo.Update(ctx, order); err != nil {
		return err
	}
	return t.vehicleRepo.UpdateStatus(ctx, vehicleID, domain.VehicleStatusIdle)
}

// loadFor loads the order and checks it is in the expected state and assigned
// to the calling vehicle.
func (t *TripService) loadFor(ctx context.Context, orderID, vehicleID string, want domain.OrderStatus) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if vehicleID == "" {
		return nil, ErrInvalidVehicleID
	}

	order, err := t.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if order.VehicleID != vehicleID {
		return nil, ErrVehicleNotAssigned
	}
	if order.Status != want {
		return nil, ErrInvalidTripState
	}
	return order, nil
}

func (t *TripService) invalidateOrder(ctx context.Context, orderID string) {
	if t.cacheStore != nil {
		t.cacheStore.InvalidateOrder(ctx, orderID)
	}
}

func (t *TripService) invalidateVehicle(ctx context.Context, vehicleID string) {
	if t.cacheStore != nil {
		t.cacheStore.InvalidateVehicle(ctx, vehicleID)
	}
}
