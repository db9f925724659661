package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

type RatingRepo struct {
	pool *pgxpool.Pool
}

func NewRatingRepo(pool *pgxpool.Pool) *RatingRepo {
	return &RatingRepo{pool: pool}
}

// CreateRating relies on the (job_id, rater_id, subject_id) unique key to reject a
// second rating that raced past HasRating.
func (r *RatingRepo) CreateRating(ctx context.Context, tx pgx.Tx, rt *models.Rating) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO ratings (id, job_id, rater_id, subject_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rt.ID, rt.JobID, rt.RaterID, rt.SubjectID, rt.Score, rt.Comment, rt.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.KindDuplicateRating, "job already rated")
	}
	return err
}

func (r *RatingRepo) HasRating(ctx context.Context, tx pgx.Tx, jobID, raterID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(r.pool, tx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ratings WHERE job_id = $1 AND rater_id = $2)
	`, jobID, raterID).Scan(&exists)
	return exists, err
}

// ListRatings returns the subject's ratings oldest first, the order the score folds them in.
func (r *RatingRepo) ListRatings(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID) ([]*models.Rating, error) {
	rows, err := conn(r.pool, tx).Query(ctx, `
		SELECT id, job_id, rater_id, subject_id, score, comment, created_at
		FROM ratings WHERE subject_id = $1 ORDER BY created_at ASC, id ASC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Rating
	for rows.Next() {
		var rt models.Rating
		if err := rows.Scan(&rt.ID, &rt.JobID, &rt.RaterID, &rt.SubjectID, &rt.Score, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rt)
	}
	return list, rows.Err()
}
