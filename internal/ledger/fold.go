package ledger

import (
	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

// Apply returns the balances after posting one entry of type entryType and amount to a
// wallet owned by role. It never mutates b.
//
// Employer wallets are spend-only: withdrawable and lifetime earnings stay at zero and
// their spendable amount is balance minus pending holds.
func Apply(role models.Role, b models.Balances, entryType string, amount int64) (models.Balances, error) {
	if amount <= 0 {
		return b, apperr.Validation("amount must be positive, got %d", amount)
	}
	worker := role == models.RoleWorker
	switch entryType {
	case models.EntryCredit:
		b.Balance += amount
		if worker {
			b.Withdrawable += amount
			b.LifetimeEarnings += amount
		}
	case models.EntryDebit, models.EntryWithdrawal:
		if entryType == models.EntryWithdrawal && !worker {
			return b, apperr.Validation("employer wallets cannot withdraw")
		}
		if amount > Spendable(role, b) {
			return b, apperr.InsufficientFunds("%s of %d exceeds available %d", entryType, amount, Spendable(role, b))
		}
		b.Balance -= amount
		if worker {
			b.Withdrawable -= amount
		}
	case models.EntryCreditPending:
		b.Balance += amount
		b.Pending += amount
	case models.EntryEscrowHold:
		if amount > Spendable(role, b) {
			return b, apperr.InsufficientFunds("hold of %d exceeds available %d", amount, Spendable(role, b))
		}
		b.Pending += amount
		if worker {
			b.Withdrawable -= amount
		}
	case models.EntryEscrowRelease:
		if amount > b.Pending {
			return b, apperr.InsufficientFunds("release of %d exceeds pending %d", amount, b.Pending)
		}
		b.Pending -= amount
		if worker {
			b.Withdrawable += amount
			b.LifetimeEarnings += amount
		}
	default:
		return b, apperr.Validation("unknown entry type %q", entryType)
	}
	return b, nil
}

// Spendable is what a debit, withdrawal or hold may consume.
func Spendable(role models.Role, b models.Balances) int64 {
	if role == models.RoleWorker {
		return b.Withdrawable
	}
	return b.Balance - b.Pending
}

// Fold replays entries from zero. Entries that fail to apply are an integrity error and
// are returned as such; a well-formed ledger never produces one.
func Fold(role models.Role, entries []*models.WalletTransaction) (models.Balances, error) {
	var b models.Balances
	for _, e := range entries {
		next, err := Apply(role, b, e.Type, e.Amount)
		if err != nil {
			return b, err
		}
		b = next
	}
	return b, nil
}
