package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/models"
)

// AuditStore is what the integrity audit reads.
type AuditStore interface {
	ListWalletIDs(ctx context.Context) ([]uuid.UUID, error)
	Snapshot(ctx context.Context, walletID uuid.UUID) (*models.Wallet, []*models.WalletTransaction, error)
}

// Mismatch is a wallet whose stored balances differ from the fold of its entries.
// FoldErr is set when an entry could not be applied at all.
type Mismatch struct {
	WalletID uuid.UUID
	Stored   models.Balances
	Folded   models.Balances
	FoldErr  error
}

func (m Mismatch) String() string {
	if m.FoldErr != nil {
		return fmt.Sprintf("wallet %s: fold failed: %v", m.WalletID, m.FoldErr)
	}
	return fmt.Sprintf("wallet %s: stored %+v, folded %+v", m.WalletID, m.Stored, m.Folded)
}

// Audit replays every wallet from zero and reports the ones that disagree with their
// materialized balances. It stops at the first storage error.
func Audit(ctx context.Context, store AuditStore) (checked int, bad []Mismatch, err error) {
	ids, err := store.ListWalletIDs(ctx)
	if err != nil {
		return 0, nil, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return checked, bad, err
		}
		w, entries, err := store.Snapshot(ctx, id)
		if err != nil {
			return checked, bad, fmt.Errorf("snapshot wallet %s: %w", id, err)
		}
		checked++
		folded, foldErr := Fold(w.Role, entries)
		if foldErr != nil || folded != w.Balances {
			bad = append(bad, Mismatch{WalletID: id, Stored: w.Balances, Folded: folded, FoldErr: foldErr})
		}
	}
	return checked, bad, nil
}
