package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) GetDispatchingByDisplayCode(ctx context.Context, code string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *domain.Order
	for _, o := range m.orders {
		if o.DisplayCode != code || o.Status != domain.OrderStatusDispatching {
			continue
		}
		if newest == nil || o.CreatedAt.After(newest.CreatedAt) {
			newest = o
		}
	}
	if newest == nil {
		return nil, repository.ErrNotFound
	}
	copy := *newest
	return &copy, nil
}

func (m *MockOrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		copy := *o
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

// GetOrder returns the stored order for test assertions.
func (m *MockOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// ──────────────────────────────────────────────
// MOCK VEHICLE REPOSITORY
// ──────────────────────────────────────────────

// MockVehicleRepository is a mock implementation of VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle

	// Counters for verification
	CreateCallCount        int32
	UpdateStatusCallCount  int32
	UpdatePenaltyCallCount int32
	SetDelinquentCallCount int32

	// Error injection
	CreateError        error
	UpdateStatusError  error
	UpdatePenaltyError error
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{
		vehicles: make(map[string]*domain.Vehicle),
	}
}

// AddVehicle adds a vehicle to the mock repository.
func (m *MockVehicleRepository) AddVehicle(vehicle *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.ID] = vehicle
}

func (m *MockVehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.ID] = vehicle
	return nil
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *vehicle
	return &copy, nil
}

func (m *MockVehicleRepository) GetAll(ctx context.Context) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		copy := *v
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockVehicleRepository) UpdateStatus(ctx context.Context, id string, status domain.VehicleStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	vehicle.Status = status
	return nil
}

func (m *MockVehicleRepository) ClaimStatus(ctx context.Context, id string, from, to domain.VehicleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	if vehicle.Status != from {
		return repository.ErrConflict
	}
	vehicle.Status = to
	return nil
}

func (m *MockVehicleRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	vehicle.LastLat = lat
	vehicle.LastLng = lng
	return nil
}

func (m *MockVehicleRepository) UpdatePenalty(ctx context.Context, id string, missed int, suspendedUntil time.Time) error {
	atomic.AddInt32(&m.UpdatePenaltyCallCount, 1)
	if m.UpdatePenaltyError != nil {
		return m.UpdatePenaltyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	vehicle.MissedOffers = missed
	vehicle.SuspendedUntil = suspendedUntil
	return nil
}

func (m *MockVehicleRepository) SetDelinquent(ctx context.Context, id string, delinquent bool) error {
	atomic.AddInt32(&m.SetDelinquentCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	vehicle.Delinquent = delinquent
	return nil
}

// GetVehicle returns the stored vehicle for test assertions.
func (m *MockVehicleRepository) GetVehicle(id string) *domain.Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicles[id]
}

// ──────────────────────────────────────────────
// MOCK WALLET REPOSITORY
// ──────────────────────────────────────────────

// MockWalletRepository is a mock implementation of WalletRepository. Debits
// that would take the balance negative are refused without writing, matching
// the conditional UPDATE in the real store.
type MockWalletRepository struct {
	mu       sync.RWMutex
	balances map[string]int64
	entries  map[string][]*domain.WalletLogEntry

	// Counters for verification
	ApplyCallCount int32

	// Error injection
	ApplyError error
}

// NewMockWalletRepository creates a new mock wallet repository.
func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{
		balances: make(map[string]int64),
		entries:  make(map[string][]*domain.WalletLogEntry),
	}
}

// SetBalance seeds a vehicle's balance.
func (m *MockWalletRepository) SetBalance(vehicleID string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[vehicleID] = balance
}

func (m *MockWalletRepository) Apply(ctx context.Context, entry *domain.WalletLogEntry) (int64, bool, error) {
	atomic.AddInt32(&m.ApplyCallCount, 1)
	if m.ApplyError != nil {
		return 0, false, m.ApplyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[entry.VehicleID]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	next := balance + entry.Amount
	if next < 0 {
		return balance, false, nil
	}

	m.balances[entry.VehicleID] = next
	entry.BalanceAfter = next
	copy := *entry
	m.entries[entry.VehicleID] = append(m.entries[entry.VehicleID], &copy)
	return next, true, nil
}

func (m *MockWalletRepository) Balance(ctx context.Context, vehicleID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	balance, ok := m.balances[vehicleID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return balance, nil
}

func (m *MockWalletRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.WalletLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.WalletLogEntry, 0, len(m.entries[vehicleID]))
	for _, e := range m.entries[vehicleID] {
		copy := *e
		result = append(result, &copy)
	}
	return result, nil
}

// EntryCount returns the number of ledger entries for a vehicle.
func (m *MockWalletRepository) EntryCount(vehicleID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[vehicleID])
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.VehicleLocation

	// Error injection
	FindError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{}
}

// SetLocations replaces the stored locations.
func (m *MockLocationStore) SetLocations(locations []redis.VehicleLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = locations
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.VehicleID == vehicleID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.VehicleLocation{VehicleID: vehicleID, Lat: lat, Lng: lng})
	return nil
}

func (m *MockLocationStore) FindNearbyVehicles(ctx context.Context, lat, lng, radiusKm float64) ([]redis.VehicleLocation, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.VehicleLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.VehicleID == vehicleID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[vehicleID] {
		return false, nil
	}
	m.locks[vehicleID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseVehicleLock(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, vehicleID)
	return nil
}

// Lock pre-acquires a lock so the next acquisition fails.
func (m *MockLockStore) Lock(vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[vehicleID] = true
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records notifications for verification.
type MockNotifier struct {
	mu             sync.Mutex
	Offers         []string // vehicle IDs offered, in order
	Assigned       []string
	FundsRejected  []string
	CancelledNotes []string
	GroupNotes     []string
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyOffer(ctx context.Context, vehicle *domain.Vehicle, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Offers = append(m.Offers, vehicle.ID)
	return nil
}

func (m *MockNotifier) NotifyAssigned(ctx context.Context, vehicleID string, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Assigned = append(m.Assigned, vehicleID)
	return nil
}

func (m *MockNotifier) NotifyFundsRejected(ctx context.Context, vehicleID string, order *domain.Order, required int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FundsRejected = append(m.FundsRejected, vehicleID)
	return nil
}

func (m *MockNotifier) NotifyCancelled(ctx context.Context, vehicleID string, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelledNotes = append(m.CancelledNotes, vehicleID)
	return nil
}

func (m *MockNotifier) NotifyGroup(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroupNotes = append(m.GroupNotes, message)
	return nil
}

// OfferedVehicles returns the offer sequence so far.
func (m *MockNotifier) OfferedVehicles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.Offers))
	copy(result, m.Offers)
	return result
}

// ──────────────────────────────────────────────
// MOCK ESTIMATOR
// ──────────────────────────────────────────────

// MockEstimator returns a fixed estimate, or an injected error.
type MockEstimator struct {
	DistanceKm  float64
	DurationMin float64

	// Error injection
	EstimateError error
}

func (m *MockEstimator) Estimate(ctx context.Context, from, to domain.LatLng) (service.Estimate, error) {
	if m.EstimateError != nil {
		return service.Estimate{}, m.EstimateError
	}
	return service.Estimate{DistanceKm: m.DistanceKm, DurationMin: m.DurationMin}, nil
}
