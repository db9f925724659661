package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

type ApplicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

const applicationColumns = `id, job_id, worker_id, employer_id, status,
	base_amount_paid, base_amount_paid_at, additional_charges_paid, additional_charges_paid_at,
	worker_confirmed_finish, worker_confirmed_at, employer_confirmed_finish, employer_confirmed_at,
	version, created_at, updated_at`

func scanApplication(row pgx.Row) (*models.JobApplication, error) {
	var a models.JobApplication
	err := row.Scan(&a.ID, &a.JobID, &a.WorkerID, &a.EmployerID, &a.Status,
		&a.BaseAmountPaid, &a.BaseAmountPaidAt, &a.AdditionalChargesPaid, &a.AdditionalChargesPaidAt,
		&a.WorkerConfirmedFinish, &a.WorkerConfirmedAt, &a.EmployerConfirmedFinish, &a.EmployerConfirmedAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("application not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApplicationRepo) loadHistory(ctx context.Context, db dbtx, a *models.JobApplication) error {
	rows, err := db.Query(ctx, `
		SELECT status, changed_at, note FROM application_status_history
		WHERE application_id = $1 ORDER BY id ASC
	`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	a.History = a.History[:0]
	for rows.Next() {
		var c models.StatusChange
		if err := rows.Scan(&c.Status, &c.ChangedAt, &c.Note); err != nil {
			return err
		}
		a.History = append(a.History, c)
	}
	return rows.Err()
}

func (r *ApplicationRepo) appendHistory(ctx context.Context, db dbtx, id uuid.UUID, changes []models.StatusChange) error {
	for _, c := range changes {
		if _, err := db.Exec(ctx, `
			INSERT INTO application_status_history (application_id, status, changed_at, note) VALUES ($1, $2, $3, $4)
		`, id, c.Status, c.ChangedAt, c.Note); err != nil {
			return err
		}
	}
	return nil
}

func (r *ApplicationRepo) GetApplication(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobApplication, error) {
	db := conn(r.pool, tx)
	a, err := scanApplication(db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return a, r.loadHistory(ctx, db, a)
}

// FindActiveApplication returns the worker's application on the job that is neither
// declined nor cancelled.
func (r *ApplicationRepo) FindActiveApplication(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID) (*models.JobApplication, error) {
	db := conn(r.pool, tx)
	a, err := scanApplication(db.QueryRow(ctx, `
		SELECT `+applicationColumns+` FROM job_applications
		WHERE job_id = $1 AND worker_id = $2 AND status NOT IN ('declined', 'cancelled')
	`, jobID, workerID))
	if err != nil {
		return nil, err
	}
	return a, r.loadHistory(ctx, db, a)
}

// CreateApplication inserts a and its history. The partial unique index on
// (job_id, worker_id) for active rows turns a racing duplicate into ConflictError.
func (r *ApplicationRepo) CreateApplication(ctx context.Context, tx pgx.Tx, a *models.JobApplication) error {
	db := conn(r.pool, tx)
	err := db.QueryRow(ctx, `
		INSERT INTO job_applications (id, job_id, worker_id, employer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING version
	`, a.ID, a.JobID, a.WorkerID, a.EmployerID, a.Status, a.CreatedAt).Scan(&a.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("worker already has an active application for this job")
		}
		return err
	}
	return r.appendHistory(ctx, db, a.ID, a.History)
}

// UpdateApplication writes a with a version check and appends the given history entries.
func (r *ApplicationRepo) UpdateApplication(ctx context.Context, tx pgx.Tx, a *models.JobApplication, appended []models.StatusChange) error {
	db := conn(r.pool, tx)
	tag, err := db.Exec(ctx, `
		UPDATE job_applications SET
			status = $3,
			base_amount_paid = $4, base_amount_paid_at = $5,
			additional_charges_paid = $6, additional_charges_paid_at = $7,
			worker_confirmed_finish = $8, worker_confirmed_at = $9,
			employer_confirmed_finish = $10, employer_confirmed_at = $11,
			updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $2
	`, a.ID, a.Version, a.Status,
		a.BaseAmountPaid, a.BaseAmountPaidAt, a.AdditionalChargesPaid, a.AdditionalChargesPaidAt,
		a.WorkerConfirmedFinish, a.WorkerConfirmedAt, a.EmployerConfirmedFinish, a.EmployerConfirmedAt,
		a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrVersionConflict
	}
	a.Version++
	return r.appendHistory(ctx, db, a.ID, appended)
}

func (r *ApplicationRepo) CountApplications(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (int, error) {
	var n int
	err := conn(r.pool, tx).QueryRow(ctx, `SELECT count(*) FROM job_applications WHERE job_id = $1`, jobID).Scan(&n)
	return n, err
}

// DeclineApplied moves every sibling still in applied to declined in its own
// transaction. Rows already declined are untouched, so re-running it is a no-op.
func (r *ApplicationRepo) DeclineApplied(ctx context.Context, jobID, winnerID uuid.UUID, note string, at time.Time) ([]models.ApplicationRef, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	refs, err := r.bulkMove(ctx, tx, `
		UPDATE job_applications SET status = 'declined', version = version + 1, updated_at = $3
		WHERE job_id = $1 AND id <> $2 AND status = 'applied'
		RETURNING id, worker_id
	`, models.ApplicationStatusDeclined, note, at, jobID, winnerID, at)
	if err != nil {
		return nil, err
	}
	return refs, tx.Commit(ctx)
}

// CancelActive cancels every non-terminal application of the job inside tx.
func (r *ApplicationRepo) CancelActive(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, note string, at time.Time) ([]models.ApplicationRef, error) {
	return r.bulkMove(ctx, tx, `
		UPDATE job_applications SET status = 'cancelled', version = version + 1, updated_at = $2
		WHERE job_id = $1 AND status NOT IN ('finished', 'declined', 'cancelled')
		RETURNING id, worker_id
	`, models.ApplicationStatusCancelled, note, at, jobID, at)
}

// PendingCascades finds jobs whose selected worker's application moved past accepted
// while siblings are still in applied, which means a decline cascade never finished.
func (r *ApplicationRepo) PendingCascades(ctx context.Context, limit int) ([]models.PendingCascade, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.job_id, w.id
		FROM job_applications w
		JOIN jobs j ON j.id = w.job_id AND j.selected_worker_id = w.worker_id
		WHERE w.status IN ('working', 'payment_pending', 'paid', 'finished')
		  AND EXISTS (
			SELECT 1 FROM job_applications s
			WHERE s.job_id = w.job_id AND s.id <> w.id AND s.status = 'applied'
		  )
		ORDER BY w.updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PendingCascade
	for rows.Next() {
		var p models.PendingCascade
		if err := rows.Scan(&p.JobID, &p.WinnerID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ApplicationRepo) bulkMove(ctx context.Context, tx pgx.Tx, update string, status models.ApplicationStatus, note string, at time.Time, args ...any) ([]models.ApplicationRef, error) {
	rows, err := tx.Query(ctx, update, args...)
	if err != nil {
		return nil, err
	}
	var refs []models.ApplicationRef
	var ids []string
	for rows.Next() {
		var ref models.ApplicationRef
		if err := rows.Scan(&ref.ID, &ref.WorkerID); err != nil {
			rows.Close()
			return nil, err
		}
		refs = append(refs, ref)
		ids = append(ids, ref.ID.String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO application_status_history (application_id, status, changed_at, note)
		SELECT unnest($1::uuid[]), $2, $3, $4
	`, ids, status, at, note)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *ApplicationRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobApplication, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.JobApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
