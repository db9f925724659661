package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet transaction types.
const (
	EntryCredit        = "credit"
	EntryDebit         = "debit"
	EntryCreditPending = "credit_pending"
	EntryWithdrawal    = "withdrawal"
	EntryEscrowHold    = "escrow_hold"
	EntryEscrowRelease = "escrow_release"
)

// EntryTypes lists every valid wallet transaction type.
var EntryTypes = []string{
	EntryCredit, EntryDebit, EntryCreditPending, EntryWithdrawal, EntryEscrowHold, EntryEscrowRelease,
}

// Balances is the materialized state of a wallet. It must always equal the fold of the
// wallet's transactions from zero.
type Balances struct {
	Balance          int64 `json:"balance"`
	Withdrawable     int64 `json:"withdrawable"`
	Pending          int64 `json:"pending"`
	LifetimeEarnings int64 `json:"lifetime_earnings"`
}

// Wallet belongs to exactly one participant; its ID is the participant ID.
type Wallet struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Role          Role      `json:"role"`
	Balances
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletTransaction is one immutable ledger entry. Amount is always positive; the
// direction is carried by Type.
type WalletTransaction struct {
	ID            uuid.UUID  `json:"id"`
	WalletID      uuid.UUID  `json:"wallet_id"`
	Type          string     `json:"type"`
	Amount        int64      `json:"amount"`
	JobID         *uuid.UUID `json:"job_id,omitempty"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	Description   string     `json:"description"`
	BalanceAfter  *int64     `json:"balance_after,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
