package domain

import (
	"fmt"
	"time"
)

// WalletEntryType tags a wallet ledger entry.
type WalletEntryType string

const (
	WalletEntryTopup      WalletEntryType = "TOPUP"
	WalletEntryCommission WalletEntryType = "COMMISSION"
	WalletEntryKickback   WalletEntryType = "KICKBACK"
	WalletEntryAdjustment WalletEntryType = "ADJUSTMENT"
)

// ParseWalletEntryType validates an entry type string at the persistence
// boundary.
func ParseWalletEntryType(s string) (WalletEntryType, error) {
	switch WalletEntryType(s) {
	case WalletEntryTopup, WalletEntryCommission, WalletEntryKickback, WalletEntryAdjustment:
		return WalletEntryType(s), nil
	default:
		return "", fmt.Errorf("unknown wallet entry type %q", s)
	}
}

// WalletLogEntry is one append-only ledger row. Entries are immutable once
// written; the sum of all entries for a vehicle always equals that vehicle's
// current balance.
type WalletLogEntry struct {
	ID           string
	VehicleID    string
	Amount       int64 // positive = top-up/kickback, negative = commission
	Type         WalletEntryType
	RefOrderID   string // optional reference order
	BalanceAfter int64  // balance snapshot after this entry
	CreatedAt    time.Time
}
