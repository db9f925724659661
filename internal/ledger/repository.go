package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ Store      = (*Repository)(nil)
	_ AuditStore = (*Repository)(nil)
)

func (r *Repository) db(tx pgx.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.pool
}

const walletColumns = `participant_id, role, balance, withdrawable, pending, lifetime_earnings, version, created_at, updated_at`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ParticipantID, &w.Role, &w.Balance, &w.Withdrawable, &w.Pending, &w.LifetimeEarnings,
		&w.Version, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("wallet not found")
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWallet opens a zero-balance wallet for a participant. Existing wallets are left alone.
func (r *Repository) CreateWallet(ctx context.Context, tx pgx.Tx, participantID uuid.UUID, role models.Role) error {
	_, err := r.db(tx).Exec(ctx, `
		INSERT INTO wallets (participant_id, role) VALUES ($1, $2)
		ON CONFLICT (participant_id) DO NOTHING
	`, participantID, role)
	return err
}

func (r *Repository) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE participant_id = $1`, walletID))
}

// GetWalletForUpdate locks the wallet row. Call within a transaction.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(r.db(tx).QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE participant_id = $1 FOR UPDATE`, walletID))
}

// UpdateBalances writes the materialized balances with a version check.
func (r *Repository) UpdateBalances(ctx context.Context, tx pgx.Tx, w *models.Wallet) error {
	tag, err := r.db(tx).Exec(ctx, `
		UPDATE wallets
		SET balance = $3, withdrawable = $4, pending = $5, lifetime_earnings = $6, version = version + 1, updated_at = now()
		WHERE participant_id = $1 AND version = $2
	`, w.ParticipantID, w.Version, w.Balance, w.Withdrawable, w.Pending, w.LifetimeEarnings)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrVersionConflict
	}
	w.Version++
	return nil
}

func (r *Repository) AppendTransaction(ctx context.Context, tx pgx.Tx, e *models.WalletTransaction) error {
	_, err := r.db(tx).Exec(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, tx_type, amount, job_id, application_id, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.WalletID, e.Type, e.Amount, e.JobID, e.ApplicationID, e.Description, e.BalanceAfter, e.CreatedAt)
	return err
}

// ListTransactions returns entries oldest first, optionally only those created at or before until.
func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.UUID, until *time.Time) ([]*models.WalletTransaction, error) {
	return listTransactions(ctx, r.pool, walletID, until)
}

func listTransactions(ctx context.Context, db dbtx, walletID uuid.UUID, until *time.Time) ([]*models.WalletTransaction, error) {
	rows, err := db.Query(ctx, `
		SELECT id, wallet_id, tx_type, amount, job_id, application_id, description, balance_after, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1 AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY seq ASC
	`, walletID, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WalletTransaction
	for rows.Next() {
		var e models.WalletTransaction
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Type, &e.Amount, &e.JobID, &e.ApplicationID, &e.Description,
			&e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func (r *Repository) ListWalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT participant_id FROM wallets ORDER BY participant_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Snapshot reads a wallet and all its entries from one repeatable-read snapshot, so
// concurrent postings cannot make the two disagree.
func (r *Repository) Snapshot(ctx context.Context, walletID uuid.UUID) (*models.Wallet, []*models.WalletTransaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)
	w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE participant_id = $1`, walletID))
	if err != nil {
		return nil, nil, err
	}
	entries, err := listTransactions(ctx, tx, walletID, nil)
	if err != nil {
		return nil, nil, err
	}
	return w, entries, tx.Commit(ctx)
}
