package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/ledger"
	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/models"
)

// PaymentWalletRepo locks wallet rows ahead of posting.
type PaymentWalletRepo interface {
	GetWalletForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*models.Wallet, error)
}

// PaymentService moves a job's money through the two-stage settlement: the base amount
// is held pending when the job is paid and released when it finishes; additional
// charges settle directly on finish.
type PaymentService struct {
	Ledger  ledger.Service
	Wallets PaymentWalletRepo
}

func NewPaymentService(l ledger.Service, wallets PaymentWalletRepo) *PaymentService {
	return &PaymentService{Ledger: l, Wallets: wallets}
}

// SettleBase debits the employer and credits the worker as pending. Call within the
// transition's transaction; InsufficientFunds aborts it.
func (s *PaymentService) SettleBase(ctx context.Context, tx pgx.Tx, job *models.Job, app *models.JobApplication) ([]*models.WalletTransaction, error) {
	if app.BaseAmountPaid || job.BaseAmount <= 0 {
		return nil, nil
	}
	if err := s.lock(ctx, tx, job.EmployerID, app.WorkerID); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Base payment for %q", job.Title)
	return s.postAll(ctx, tx, job, app,
		posting{job.EmployerID, models.EntryDebit, job.BaseAmount, desc},
		posting{app.WorkerID, models.EntryCreditPending, job.BaseAmount, desc},
	)
}

// SettleFinish pays outstanding additional charges and releases the held base amount
// into the worker's withdrawable balance.
func (s *PaymentService) SettleFinish(ctx context.Context, tx pgx.Tx, job *models.Job, app *models.JobApplication) ([]*models.WalletTransaction, error) {
	var list []posting
	if job.AdditionalCharges > 0 && !app.AdditionalChargesPaid {
		desc := fmt.Sprintf("Additional charges for %q", job.Title)
		list = append(list,
			posting{job.EmployerID, models.EntryDebit, job.AdditionalCharges, desc},
			posting{app.WorkerID, models.EntryCredit, job.AdditionalCharges, desc},
		)
	}
	// pending -> withdrawable is an entry of its own so the fold still matches balances
	if app.BaseAmountPaid && job.BaseAmount > 0 {
		list = append(list, posting{app.WorkerID, models.EntryEscrowRelease, job.BaseAmount, fmt.Sprintf("Release of base payment for %q", job.Title)})
	}
	if len(list) == 0 {
		return nil, nil
	}
	if err := s.lock(ctx, tx, job.EmployerID, app.WorkerID); err != nil {
		return nil, err
	}
	return s.postAll(ctx, tx, job, app, list...)
}

type posting struct {
	wallet uuid.UUID
	typ    string
	amount int64
	desc   string
}

func (s *PaymentService) postAll(ctx context.Context, tx pgx.Tx, job *models.Job, app *models.JobApplication, list ...posting) ([]*models.WalletTransaction, error) {
	out := make([]*models.WalletTransaction, 0, len(list))
	for _, p := range list {
		entry := &models.WalletTransaction{
			Type:          p.typ,
			Amount:        p.amount,
			JobID:         &job.ID,
			ApplicationID: &app.ID,
			Description:   p.desc,
		}
		if _, err := s.Ledger.Post(ctx, tx, p.wallet, entry); err != nil {
			return nil, err
		}
		metrics.RecordPosting(p.typ)
		out = append(out, entry)
	}
	return out, nil
}

// lock takes row locks on the affected wallets in uuid order so concurrent
// settlements cannot deadlock.
func (s *PaymentService) lock(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.Wallets.GetWalletForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}
