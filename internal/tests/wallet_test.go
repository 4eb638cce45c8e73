package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func TestWalletLedger_CreditAndDeduct(t *testing.T) {
	ctx := context.Background()
	walletRepo := NewMockWalletRepository()
	walletRepo.SetBalance("vehicle-1", 0)
	ledger := service.NewWalletLedger(walletRepo)

	balance, err := ledger.Credit(ctx, "vehicle-1", 500, domain.WalletEntryTopup, "")
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if balance != 500 {
		t.Errorf("expected balance 500, got %d", balance)
	}

	balance, err = ledger.Deduct(ctx, "vehicle-1", 65, domain.WalletEntryCommission, "order-1")
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if balance != 435 {
		t.Errorf("expected balance 435, got %d", balance)
	}

	entries, err := ledger.Entries(ctx, "vehicle-1")
	if err != nil {
		t.Fatalf("entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].Amount != 500 || entries[0].BalanceAfter != 500 {
		t.Errorf("unexpected first entry: amount=%d after=%d", entries[0].Amount, entries[0].BalanceAfter)
	}
	if entries[1].Amount != -65 || entries[1].BalanceAfter != 435 {
		t.Errorf("unexpected second entry: amount=%d after=%d", entries[1].Amount, entries[1].BalanceAfter)
	}
	if entries[1].RefOrderID != "order-1" {
		t.Errorf("expected ref order-1, got %q", entries[1].RefOrderID)
	}
}

func TestWalletLedger_DeductInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	walletRepo := NewMockWalletRepository()
	walletRepo.SetBalance("vehicle-1", 50)
	ledger := service.NewWalletLedger(walletRepo)

	_, err := ledger.Deduct(ctx, "vehicle-1", 100, domain.WalletEntryCommission, "order-1")
	if !errors.Is(err, service.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// No partial effect: balance unchanged, no entry written.
	balance, _ := ledger.BalanceOf(ctx, "vehicle-1")
	if balance != 50 {
		t.Errorf("expected balance unchanged at 50, got %d", balance)
	}
	if n := walletRepo.EntryCount("vehicle-1"); n != 0 {
		t.Errorf("expected no ledger entries, got %d", n)
	}
}

func TestWalletLedger_DeductExactBalance(t *testing.T) {
	ctx := context.Background()
	walletRepo := NewMockWalletRepository()
	walletRepo.SetBalance("vehicle-1", 100)
	ledger := service.NewWalletLedger(walletRepo)

	balance, err := ledger.Deduct(ctx, "vehicle-1", 100, domain.WalletEntryCommission, "order-1")
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected balance 0, got %d", balance)
	}
}

func TestWalletLedger_RejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	walletRepo := NewMockWalletRepository()
	walletRepo.SetBalance("vehicle-1", 100)
	ledger := service.NewWalletLedger(walletRepo)

	if _, err := ledger.Deduct(ctx, "vehicle-1", 0, domain.WalletEntryCommission, ""); !errors.Is(err, service.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero deduct, got %v", err)
	}
	if _, err := ledger.Credit(ctx, "vehicle-1", -5, domain.WalletEntryTopup, ""); !errors.Is(err, service.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative credit, got %v", err)
	}
	if _, err := ledger.Deduct(ctx, "", 10, domain.WalletEntryCommission, ""); !errors.Is(err, service.ErrInvalidVehicleID) {
		t.Errorf("expected ErrInvalidVehicleID, got %v", err)
	}
}

func TestWalletLedger_ConcurrentDeductsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	walletRepo := NewMockWalletRepository()
	walletRepo.SetBalance("vehicle-1", 100)
	ledger := service.NewWalletLedger(walletRepo)

	const workers = 20
	var wg sync.WaitGroup
	var successCount int32
	var successMu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Deduct(ctx, "vehicle-1", 30, domain.WalletEntryCommission, ""); err == nil {
				successMu.Lock()
				successCount++
				successMu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 100 / 30 = at most 3 successful deductions.
	if successCount != 3 {
		t.Errorf("expected exactly 3 successful deductions, got %d", successCount)
	}
	balance, _ := ledger.BalanceOf(ctx, "vehicle-1")
	if balance != 10 {
		t.Errorf("expected final balance 10, got %d", balance)
	}
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
}
