package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/models"
)

// Store is the persistence contract the ledger needs. Repository implements it on pgx.
type Store interface {
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*models.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, w *models.Wallet) error
	AppendTransaction(ctx context.Context, tx pgx.Tx, e *models.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, until *time.Time) ([]*models.WalletTransaction, error)
}

type Service interface {
	// Post appends entry to the wallet and updates its running balances inside tx.
	Post(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, entry *models.WalletTransaction) (*models.Wallet, error)
	// BalanceAsOf folds all entries created at or before at.
	BalanceAsOf(ctx context.Context, walletID uuid.UUID, at time.Time) (models.Balances, error)
	Wallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	Statement(ctx context.Context, walletID uuid.UUID) ([]*models.WalletTransaction, error)
}

type service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) Service {
	return &service{store: store, now: time.Now}
}

var _ Service = (*service)(nil)

func (s *service) Post(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, entry *models.WalletTransaction) (*models.Wallet, error) {
	w, err := s.store.GetWalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	next, err := Apply(w.Role, w.Balances, entry.Type, entry.Amount)
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.WalletID = walletID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	balanceAfter := next.Balance
	entry.BalanceAfter = &balanceAfter
	if err := s.store.AppendTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}
	w.Balances = next
	if err := s.store.UpdateBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *service) BalanceAsOf(ctx context.Context, walletID uuid.UUID, at time.Time) (models.Balances, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return models.Balances{}, err
	}
	entries, err := s.store.ListTransactions(ctx, walletID, &at)
	if err != nil {
		return models.Balances{}, err
	}
	return Fold(w.Role, entries)
}

func (s *service) Wallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	return s.store.GetWallet(ctx, walletID)
}

func (s *service) Statement(ctx context.Context, walletID uuid.UUID) ([]*models.WalletTransaction, error) {
	if _, err := s.store.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListTransactions(ctx, walletID, nil)
	if err != nil {
		return nil, err
	}
	// newest first for display
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
