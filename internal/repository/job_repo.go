package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Begin starts the unit of work every lifecycle operation runs in.
func (r *JobRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const jobColumns = `id, employer_id, selected_worker_id, title, status, base_amount, additional_charges, total_payment,
	applicant_count, work_started_at, base_paid_at, additional_paid_at, completed_at, version, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.EmployerID, &j.SelectedWorkerID, &j.Title, &j.Status, &j.BaseAmount, &j.AdditionalCharges,
		&j.TotalPayment, &j.ApplicantCount, &j.WorkStartedAt, &j.BasePaidAt, &j.AdditionalPaidAt, &j.CompletedAt,
		&j.Version, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("job not found")
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepo) CreateJob(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	return conn(r.pool, tx).QueryRow(ctx, `
		INSERT INTO jobs (id, employer_id, title, status, base_amount, additional_charges, total_payment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING version
	`, j.ID, j.EmployerID, j.Title, j.Status, j.BaseAmount, j.AdditionalCharges, j.TotalPayment, j.CreatedAt).Scan(&j.Version)
}

func (r *JobRepo) GetJob(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	return scanJob(conn(r.pool, tx).QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// UpdateJob writes every mutable column if the stored version still matches j.Version.
func (r *JobRepo) UpdateJob(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE jobs SET
			selected_worker_id = $3, status = $4, base_amount = $5, additional_charges = $6, total_payment = $7,
			applicant_count = $8, work_started_at = $9, base_paid_at = $10, additional_paid_at = $11, completed_at = $12,
			updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`, j.ID, j.Version, j.SelectedWorkerID, j.Status, j.BaseAmount, j.AdditionalCharges, j.TotalPayment,
		j.ApplicantCount, j.WorkStartedAt, j.BasePaidAt, j.AdditionalPaidAt, j.CompletedAt, j.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrVersionConflict
	}
	j.Version++
	return nil
}

func (r *JobRepo) ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE employer_id = $1 ORDER BY created_at DESC`, employerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}
