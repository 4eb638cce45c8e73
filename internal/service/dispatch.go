package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/repository/postgres"
)

const vehicleLockTTL = 10 * time.Second

// DispatchScheduler drives the offer sequence for orders. Each dispatching
// order is owned by exactly one goroutine; acceptances and cancellations are
// delivered to it as messages, so there is no shared mutable dispatch state.
type DispatchScheduler struct {
	orderRepo   repository.OrderRepository
	vehicleRepo repository.VehicleRepository
	selector    *CandidateSelector
	penalty     *PenaltyTracker
	ledger      *WalletLedger
	fare        *FareEngine
	notifier    Notifier
	events      *EventBus
	lockStore   redis.LockStoreInterface
	cacheStore  *redis.CacheStore
	db          *sql.DB
	cfg         config.DispatchConfig
	now         func() time.Time

	mu   sync.Mutex
	runs map[string]*dispatchRun
	stop chan struct{}
	wg   sync.WaitGroup
}

type dispatchRun struct {
	orderID string
	inbox   chan dispatchMsg
	done    chan struct{}
}

type dispatchMsg interface{ isDispatchMsg() }

type acceptMsg struct {
	vehicleID string
	reply     chan error
}

type cancelMsg struct {
	reason string
	reply  chan error
}

func (acceptMsg) isDispatchMsg() {}
func (cancelMsg) isDispatchMsg() {}

// NewDispatchScheduler creates a new DispatchScheduler. db, lockStore and
// cacheStore may be nil; the scheduler then skips transactional assignment,
// vehicle locking and cache invalidation respectively.
func NewDispatchScheduler(
	orderRepo repository.OrderRepository,
	vehicleRepo repository.VehicleRepository,
	selector *CandidateSelector,
	penalty *PenaltyTracker,
	ledger *WalletLedger,
	fare *FareEngine,
	notifier Notifier,
	events *EventBus,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	db *sql.DB,
	cfg config.DispatchConfig,
) *DispatchScheduler {
	return &DispatchScheduler{
		orderRepo:   orderRepo,
		vehicleRepo: vehicleRepo,
		selector:    selector,
		penalty:     penalty,
		ledger:      ledger,
		fare:        fare,
		notifier:    notifier,
		events:      events,
		lockStore:   lockStore,
		cacheStore:  cacheStore,
		db:          db,
		cfg:         cfg,
		now:         time.Now,
		runs:        make(map[string]*dispatchRun),
		stop:        make(chan struct{}),
	}
}

// Dispatch moves a PENDING order to DISPATCHING and starts its offer loop.
func (s *DispatchScheduler) Dispatch(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	if order.Status != domain.OrderStatusPending {
		return ErrOrderNotPending
	}

	order.Status = domain.OrderStatusDispatching
	order.CandidateIndex = 0
	order.PoolExhausted = false
	order.OfferedVehicleID = ""
	order.OfferExpiresAt = time.Time{}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return err
	}
	s.invalidateOrder(ctx, orderID)

	run := &dispatchRun{
		orderID: orderID,
		inbox:   make(chan dispatchMsg, 8),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.runs[orderID]; exists {
		s.mu.Unlock()
		return ErrOrderNotPending
	}
	s.runs[orderID] = run
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runDispatch(order, run)
	return nil
}

// SubmitAcceptance delivers a vehicle's acceptance to the order's dispatch
// run and waits for the verdict.
func (s *DispatchScheduler) SubmitAcceptance(ctx context.Context, orderID, vehicleID string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}
	if vehicleID == "" {
		return ErrInvalidVehicleID
	}

	run := s.lookupRun(orderID)
	if run == nil {
		order, err := s.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		return ErrOrderNotDispatching
	}

	msg := acceptMsg{vehicleID: vehicleID, reply: make(chan error, 1)}
	select {
	case run.inbox <- msg:
	case <-run.done:
		return ErrOrderNotDispatching
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-msg.reply:
		return err
	case <-run.done:
		// The run may have answered just before exiting.
		select {
		case err := <-msg.reply:
			return err
		default:
			return ErrOrderNotDispatching
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitReply resolves a free-form driver chat reply to an order and submits
// the acceptance. The reply carries a display code, which may collide; the
// newest dispatching match wins.
func (s *DispatchScheduler) SubmitReply(ctx context.Context, text, vehicleID string) (string, error) {
	code, ok := ParseAcceptReply(text)
	if !ok {
		return "", ErrUnrecognizedReply
	}
	order, err := s.orderRepo.GetDispatchingByDisplayCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrOrderNotDispatching
		}
		return "", err
	}
	return order.ID, s.SubmitAcceptance(ctx, order.ID, vehicleID)
}

// Cancel terminates an order from any non-terminal state. A running dispatch
// loop is stopped; an assigned vehicle is released back to IDLE.
func (s *DispatchScheduler) Cancel(ctx context.Context, orderID, reason string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}

	if run := s.lookupRun(orderID); run != nil {
		msg := cancelMsg{reason: reason, reply: make(chan error, 1)}
		delivered := false
		select {
		case run.inbox <- msg:
			delivered = true
		case <-run.done:
			// Run ended between lookup and send; cancel directly below.
		case <-ctx.Done():
			return ctx.Err()
		}

		if delivered {
			select {
			case err := <-msg.reply:
				return err
			case <-run.done:
				// The run may have exited with the message still
				// buffered; drain a reply if one was sent, else cancel
				// directly below.
				select {
				case err := <-msg.reply:
					return err
				default:
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return ErrAlreadyTerminal
	}

	assignedVehicle := order.VehicleID
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = s.now()
	order.CancelReason = reason
	order.OfferedVehicleID = ""
	order.OfferExpiresAt = time.Time{}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return err
	}
	s.invalidateOrder(ctx, orderID)

	if assignedVehicle != "" {
		if err := s.vehicleRepo.UpdateStatus(ctx, assignedVehicle, domain.VehicleStatusIdle); err != nil {
			log.Printf("cancel order %s: release vehicle %s: %v", orderID, assignedVehicle, err)
		}
		s.invalidateVehicle(ctx, assignedVehicle)
		if s.notifier != nil {
			s.notifier.NotifyCancelled(ctx, assignedVehicle, order)
		}
	}

	s.events.Publish(DispatchEvent{Type: EventCancelled, OrderID: orderID, VehicleID: assignedVehicle})
	return nil
}

// Shutdown stops all dispatch loops and waits for them to drain. Orders mid
// dispatch are parked back to PENDING so a restart can re-dispatch them.
func (s *DispatchScheduler) Shutdown(ctx context.Context) error {
	close(s.stop)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DispatchScheduler) lookupRun(orderID string) *dispatchRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[orderID]
}

func (s *DispatchScheduler) removeRun(run *dispatchRun) {
	s.mu.Lock()
	delete(s.runs, run.orderID)
	s.mu.Unlock()
	close(run.done)
	s.wg.Done()
}

// runDispatch is the single writer for one order's dispatch state. It offers
// the order to one candidate at a time and advances on timeout, refusal by
// wallet check, or pool exhaustion.
func (s *DispatchScheduler) runDispatch(order *domain.Order, run *dispatchRun) {
	defer s.removeRun(run)

	ctx := context.Background()
	excluded := make(map[string]bool)

	for {
		vehicle, err := s.selector.Next(ctx, order, excluded)
		if err != nil {
			if errors.Is(err, ErrPoolExhausted) {
				s.parkExhausted(ctx, order)
				return
			}
			log.Printf("dispatch order %s: select candidate: %v", order.ID, err)
			s.parkExhausted(ctx, order)
			return
		}

		order.OfferedVehicleID = vehicle.ID
		order.OfferExpiresAt = s.now().Add(s.cfg.OfferWindow)
		order.CandidateIndex++
		if err := s.orderRepo.Update(ctx, order); err != nil {
			log.Printf("dispatch order %s: persist offer: %v", order.ID, err)
			return
		}
		s.invalidateOrder(ctx, order.ID)

		if s.notifier != nil {
			s.notifier.NotifyOffer(ctx, vehicle, order)
		}
		s.events.Publish(DispatchEvent{Type: EventOffered, OrderID: order.ID, VehicleID: vehicle.ID})

		outcome := s.awaitOffer(ctx, order, vehicle, run, excluded)
		switch outcome {
		case offerAssigned, offerCancelled, offerStopped:
			return
		case offerAdvance:
			// next candidate
		}
	}
}

type offerOutcome int

const (
	offerAdvance offerOutcome = iota
	offerKeepWaiting
	offerAssigned
	offerCancelled
	offerStopped
)

// awaitOffer waits out one offer window, handling messages as they arrive.
// The timer is not reset by stale acceptances; the window belongs to the
// offered vehicle alone.
func (s *DispatchScheduler) awaitOffer(ctx context.Context, order *domain.Order, vehicle *domain.Vehicle, run *dispatchRun, excluded map[string]bool) offerOutcome {
	timer := time.NewTimer(time.Until(order.OfferExpiresAt))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if err := s.penalty.RecordMiss(ctx, vehicle.ID); err != nil {
				log.Printf("dispatch order %s: record miss for %s: %v", order.ID, vehicle.ID, err)
			}
			s.invalidateVehicle(ctx, vehicle.ID)
			excluded[vehicle.ID] = true
			s.events.Publish(DispatchEvent{Type: EventOfferExpired, OrderID: order.ID, VehicleID: vehicle.ID})
			return offerAdvance

		case <-s.stop:
			s.parkPending(ctx, order)
			return offerStopped

		case msg := <-run.inbox:
			switch m := msg.(type) {
			case acceptMsg:
				outcome, err := s.handleAccept(ctx, order, vehicle, m.vehicleID, excluded)
				m.reply <- err
				if outcome != offerKeepWaiting {
					return outcome
				}

			case cancelMsg:
				s.cancelInRun(ctx, order, m.reason)
				m.reply <- nil
				return offerCancelled
			}
		}
	}
}

// handleAccept decides an acceptance's fate: stale acceptances keep the
// current offer open; a wallet that cannot cover the projected commission
// refuses the vehicle without penalty and advances; otherwise the vehicle
// wins the order.
func (s *DispatchScheduler) handleAccept(ctx context.Context, order *domain.Order, vehicle *domain.Vehicle, acceptingID string, excluded map[string]bool) (offerOutcome, error) {
	if acceptingID != vehicle.ID || s.now().After(order.OfferExpiresAt) {
		log.Printf("dispatch order %s: stale acceptance from %s (offer held by %s)",
			order.ID, acceptingID, vehicle.ID)
		return offerKeepWaiting, ErrStaleAcceptance
	}

	commission := s.fare.Commission(order.Price)
	balance, err := s.ledger.BalanceOf(ctx, vehicle.ID)
	if err != nil {
		return offerKeepWaiting, err
	}
	if balance < commission {
		excluded[vehicle.ID] = true
		if s.notifier != nil {
			s.notifier.NotifyFundsRejected(ctx, vehicle.ID, order, commission)
		}
		s.events.Publish(DispatchEvent{Type: EventFundsRejected, OrderID: order.ID, VehicleID: vehicle.ID})
		return offerAdvance, ErrInsufficientFunds
	}

	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireVehicleLock(ctx, vehicle.ID, vehicleLockTTL)
		if err != nil {
			log.Printf("dispatch order %s: acquire lock for %s: %v", order.ID, vehicle.ID, err)
		} else if !acquired {
			excluded[vehicle.ID] = true
			return offerAdvance, ErrVehicleBusy
		} else {
			defer s.lockStore.ReleaseVehicleLock(ctx, vehicle.ID)
		}
	}

	// The vehicle stays IDLE while it holds an offer, so a concurrent run
	// may have assigned it in the meantime. Re-verify under the lock.
	current, err := s.vehicleRepo.GetByID(ctx, vehicle.ID)
	if err != nil {
		return offerKeepWaiting, err
	}
	if current.Status != domain.VehicleStatusIdle {
		excluded[vehicle.ID] = true
		return offerAdvance, ErrVehicleBusy
	}

	if err := s.assign(ctx, order, vehicle.ID); err != nil {
		if errors.Is(err, ErrVehicleBusy) {
			excluded[vehicle.ID] = true
			return offerAdvance, err
		}
		return offerKeepWaiting, err
	}

	if err := s.penalty.Forgive(ctx, vehicle.ID); err != nil {
		log.Printf("dispatch order %s: forgive %s: %v", order.ID, vehicle.ID, err)
	}
	s.invalidateOrder(ctx, order.ID)
	s.invalidateVehicle(ctx, vehicle.ID)

	if s.notifier != nil {
		s.notifier.NotifyAssigned(ctx, vehicle.ID, order)
	}
	s.events.Publish(DispatchEvent{Type: EventAssigned, OrderID: order.ID, VehicleID: vehicle.ID})
	return offerAssigned, nil
}

// assign persists the assignment. The vehicle's IDLE to BUSY flip is a
// compare-and-set, so an assignment that lost the vehicle to a concurrent
// order fails with ErrVehicleBusy instead of stacking a second order onto
// it. With a database handle present the order update and the claim commit
// atomically.
func (s *DispatchScheduler) assign(ctx context.Context, order *domain.Order, vehicleID string) error {
	markAssigned := func() {
		order.Status = domain.OrderStatusAssigned
		order.VehicleID = vehicleID
		order.OfferedVehicleID = ""
		order.OfferExpiresAt = time.Time{}
	}
	offerExpiry := order.OfferExpiresAt
	markOffered := func() {
		order.Status = domain.OrderStatusDispatching
		order.VehicleID = ""
		order.OfferedVehicleID = vehicleID
		order.OfferExpiresAt = offerExpiry
	}

	if s.db != nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := postgres.NewVehicleRepositoryWithTx(tx).ClaimStatus(ctx, vehicleID, domain.VehicleStatusIdle, domain.VehicleStatusBusy); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrVehicleBusy
			}
			return err
		}
		markAssigned()
		if err := postgres.NewOrderRepositoryWithTx(tx).Update(ctx, order); err != nil {
			markOffered()
			return err
		}
		if err := tx.Commit(); err != nil {
			markOffered()
			return err
		}
		return nil
	}

	if err := s.vehicleRepo.ClaimStatus(ctx, vehicleID, domain.VehicleStatusIdle, domain.VehicleStatusBusy); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrVehicleBusy
		}
		return err
	}
	markAssigned()
	if err := s.orderRepo.Update(ctx, order); err != nil {
		// Release the claim so the vehicle is not stranded BUSY with no
		// order attached.
		markOffered()
		if relErr := s.vehicleRepo.UpdateStatus(ctx, vehicleID, domain.VehicleStatusIdle); relErr != nil {
			log.Printf("dispatch order %s: release claim on %s: %v", order.ID, vehicleID, relErr)
		}
		return err
	}
	return nil
}

// parkExhausted returns an order with no remaining candidates to PENDING and
// flags it for manual re-dispatch. Exhaustion is a normal outcome.
func (s *DispatchScheduler) parkExhausted(ctx context.Context, order *domain.Order) {
	order.Status = domain.OrderStatusPending
	order.PoolExhausted = true
	order.OfferedVehicleID = ""
	order.OfferExpiresAt = time.Time{}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		log.Printf("dispatch order %s: park exhausted: %v", order.ID, err)
		return
	}
	s.invalidateOrder(ctx, order.ID)
	log.Printf("dispatch order %s: candidate pool exhausted after %d offers", order.ID, order.CandidateIndex)
	if s.notifier != nil {
		s.notifier.NotifyGroup(ctx, fmt.Sprintf("order %s (%s): no vehicle available, re-dispatch required", order.ID, order.DisplayCode))
	}
	s.events.Publish(DispatchEvent{Type: EventPoolExhausted, OrderID: order.ID})
}

// parkPending returns an in-flight order to PENDING on shutdown so a restart
// can dispatch it again.
func (s *DispatchScheduler) parkPending(ctx context.Context, order *domain.Order) {
	order.Status = domain.OrderStatusPending
	order.OfferedVehicleID = ""
	order.OfferExpiresAt = time.Time{}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		log.Printf("dispatch order %s: park on shutdown: %v", order.ID, err)
		return
	}
	s.invalidateOrder(ctx, order.ID)
}

// cancelInRun terminates the order from inside its own dispatch loop.
func (s *DispatchScheduler) cancelInRun(ctx context.Context, order *domain.Order, reason string) {
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = s.now()
	order.CancelReason = reason
	order.OfferedVehicleID = ""
	order.OfferExpiresAt = time.Time{}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		log.Printf("dispatch order %s: persist cancel: %v", order.ID, err)
	}
	s.invalidateOrder(ctx, order.ID)
	s.events.Publish(DispatchEvent{Type: EventCancelled, OrderID: order.ID})
}

func (s *DispatchScheduler) invalidateOrder(ctx context.Context, orderID string) {
	if s.cacheStore != nil {
		s.cacheStore.InvalidateOrder(ctx, orderID)
	}
}

func (s *DispatchScheduler) invalidateVehicle(ctx context.Context, vehicleID string) {
	if s.cacheStore != nil {
		s.cacheStore.InvalidateVehicle(ctx, vehicleID)
	}
}
