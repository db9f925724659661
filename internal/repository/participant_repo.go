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

type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func (r *ParticipantRepo) GetParticipant(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := conn(r.pool, tx).QueryRow(ctx, `
		SELECT id, role, name, phone, phone_verified, email, email_verified, identity_verified, photo_url, location,
			skills, experience_years, languages, business_name, business_registered, bank_linked,
			reputation_score, ratings_count, completeness_pct, version, created_at, updated_at
		FROM participants WHERE id = $1
	`, id).Scan(&p.ID, &p.Role, &p.Name, &p.Phone, &p.PhoneVerified, &p.Email, &p.EmailVerified, &p.IdentityVerified,
		&p.PhotoURL, &p.Location, &p.Skills, &p.ExperienceYears, &p.Languages, &p.BusinessName, &p.BusinessRegistered,
		&p.BankLinked, &p.Reputation.Score, &p.Reputation.RatingsCount, &p.Reputation.CompletenessPct,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("participant not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepo) CreateParticipant(ctx context.Context, tx pgx.Tx, p *models.Participant) error {
	err := conn(r.pool, tx).QueryRow(ctx, `
		INSERT INTO participants (id, role, name, phone, phone_verified, email, email_verified, identity_verified, photo_url,
			location, skills, experience_years, languages, business_name, business_registered, bank_linked,
			reputation_score, ratings_count, completeness_pct, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20)
		RETURNING version
	`, p.ID, p.Role, p.Name, p.Phone, p.PhoneVerified, p.Email, p.EmailVerified, p.IdentityVerified, p.PhotoURL,
		p.Location, nonNil(p.Skills), p.ExperienceYears, nonNil(p.Languages), p.BusinessName, p.BusinessRegistered,
		p.BankLinked, p.Reputation.Score, p.Reputation.RatingsCount, p.Reputation.CompletenessPct, p.CreatedAt).Scan(&p.Version)
	if isUniqueViolation(err) {
		return apperr.ErrVersionConflict
	}
	return err
}

// UpdateParticipant overwrites the profile and its derived reputation under a version check.
func (r *ParticipantRepo) UpdateParticipant(ctx context.Context, tx pgx.Tx, p *models.Participant) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE participants SET
			name = $3, phone = $4, phone_verified = $5, email = $6, email_verified = $7, identity_verified = $8,
			photo_url = $9, location = $10, skills = $11, experience_years = $12, languages = $13,
			business_name = $14, business_registered = $15, bank_linked = $16,
			reputation_score = $17, ratings_count = $18, completeness_pct = $19,
			updated_at = $20, version = version + 1
		WHERE id = $1 AND version = $2
	`, p.ID, p.Version, p.Name, p.Phone, p.PhoneVerified, p.Email, p.EmailVerified, p.IdentityVerified,
		p.PhotoURL, p.Location, nonNil(p.Skills), p.ExperienceYears, nonNil(p.Languages),
		p.BusinessName, p.BusinessRegistered, p.BankLinked,
		p.Reputation.Score, p.Reputation.RatingsCount, p.Reputation.CompletenessPct, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrVersionConflict
	}
	p.Version++
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
