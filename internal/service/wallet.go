package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// WalletLedger owns all balance mutation. Every mutation appends exactly one
// ledger entry; the cached balance and the entry commit atomically inside the
// repository. Mutations for the same vehicle are additionally serialized
// in-process so two simultaneous deductions can never both pass the
// affordability check.
type WalletLedger struct {
	walletRepo repository.WalletRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWalletLedger creates a new WalletLedger.
func NewWalletLedger(walletRepo repository.WalletRepository) *WalletLedger {
	return &WalletLedger{
		walletRepo: walletRepo,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Deduct atomically checks and applies a debit. Rejects with
// ErrInsufficientFunds when the balance cannot cover the amount; no partial
// effect in that case.
func (l *WalletLedger) Deduct(ctx context.Context, vehicleID string, amount int64, entryType domain.WalletEntryType, refOrderID string) (int64, error) {
	if vehicleID == "" {
		return 0, ErrInvalidVehicleID
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	lock := l.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	entry := &domain.WalletLogEntry{
		ID:         uuid.New().String(),
		VehicleID:  vehicleID,
		Amount:     -amount,
		Type:       entryType,
		RefOrderID: refOrderID,
		CreatedAt:  time.Now(),
	}

	newBalance, applied, err := l.walletRepo.Apply(ctx, entry)
	if err != nil {
		return 0, err
	}
	if !applied {
		return 0, ErrInsufficientFunds
	}
	return newBalance, nil
}

// Credit applies a top-up or kickback. Always succeeds for a positive amount.
func (l *WalletLedger) Credit(ctx context.Context, vehicleID string, amount int64, entryType domain.WalletEntryType, refOrderID string) (int64, error) {
	if vehicleID == "" {
		return 0, ErrInvalidVehicleID
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	lock := l.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	entry := &domain.WalletLogEntry{
		ID:         uuid.New().String(),
		VehicleID:  vehicleID,
		Amount:     amount,
		Type:       entryType,
		RefOrderID: refOrderID,
		CreatedAt:  time.Now(),
	}

	newBalance, _, err := l.walletRepo.Apply(ctx, entry)
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// BalanceOf returns the current committed balance for a vehicle.
func (l *WalletLedger) BalanceOf(ctx context.Context, vehicleID string) (int64, error) {
	if vehicleID == "" {
		return 0, ErrInvalidVehicleID
	}
	return l.walletRepo.Balance(ctx, vehicleID)
}

// Entries returns the full ledger for a vehicle, oldest first.
func (l *WalletLedger) Entries(ctx context.Context, vehicleID string) ([]*domain.WalletLogEntry, error) {
	if vehicleID == "" {
		return nil, ErrInvalidVehicleID
	}
	return l.walletRepo.ListByVehicle(ctx, vehicleID)
}

func (l *WalletLedger) lockFor(vehicleID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[vehicleID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[vehicleID] = lock
	}
	return lock
}
