package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/ledger"
	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/models"
)

// MaxDeposit caps a single top-up in minor units.
const MaxDeposit int64 = 10_000_000

// WalletService exposes the ledger to participants: reads for everyone and top-ups
// for employers, whose wallets fund job payments.
type WalletService struct {
	Tx          TxBeginner
	Ledger      ledger.Service
	MaxAttempts int
}

func NewWalletService(tx TxBeginner, l ledger.Service) *WalletService {
	return &WalletService{Tx: tx, Ledger: l, MaxAttempts: defaultMaxAttempts}
}

// Deposit credits the calling employer's wallet. Workers are paid through jobs only.
func (s *WalletService) Deposit(ctx context.Context, actor models.Actor, amount int64, reference string) (*models.Wallet, error) {
	if actor.Role != models.RoleEmployer {
		return nil, apperr.Authorization("only employers may top up their wallet")
	}
	if amount <= 0 || amount > MaxDeposit {
		return nil, apperr.Validation("deposit must be between 1 and %d", MaxDeposit)
	}
	desc := "wallet top-up"
	if ref := strings.TrimSpace(reference); ref != "" {
		desc += " " + ref
	}
	var w *models.Wallet
	err := runInTx(ctx, s.Tx, s.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		w, err = s.Ledger.Post(ctx, tx, actor.ParticipantID, &models.WalletTransaction{
			Type: models.EntryCredit, Amount: amount, Description: desc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPosting(models.EntryCredit)
	return w, nil
}

func (s *WalletService) Wallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return readOnce(ctx, func(ctx context.Context) (*models.Wallet, error) {
		return s.Ledger.Wallet(ctx, id)
	})
}

// Statement lists the wallet's entries newest first.
func (s *WalletService) Statement(ctx context.Context, id uuid.UUID) ([]*models.WalletTransaction, error) {
	return readOnce(ctx, func(ctx context.Context) ([]*models.WalletTransaction, error) {
		return s.Ledger.Statement(ctx, id)
	})
}

func (s *WalletService) BalanceAsOf(ctx context.Context, id uuid.UUID, at time.Time) (models.Balances, error) {
	return readOnce(ctx, func(ctx context.Context) (models.Balances, error) {
		return s.Ledger.BalanceAsOf(ctx, id, at)
	})
}
