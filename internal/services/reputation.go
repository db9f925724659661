package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/models"
	"github.com/sindh/backend/internal/reputation"
)

// ReputationParticipantRepo is the participant repository interface used for profiles
// and reputation.
type ReputationParticipantRepo interface {
	GetParticipant(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Participant, error)
	CreateParticipant(ctx context.Context, tx pgx.Tx, p *models.Participant) error
	UpdateParticipant(ctx context.Context, tx pgx.Tx, p *models.Participant) error
}

type ReputationRatingRepo interface {
	CreateRating(ctx context.Context, tx pgx.Tx, r *models.Rating) error
	HasRating(ctx context.Context, tx pgx.Tx, jobID, raterID uuid.UUID) (bool, error)
	ListRatings(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID) ([]*models.Rating, error)
}

// WalletCreator opens a participant's wallet. Creating an existing wallet is a no-op.
type WalletCreator interface {
	CreateWallet(ctx context.Context, tx pgx.Tx, participantID uuid.UUID, role models.Role) error
}

type ReputationJobReader interface {
	GetJob(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
}

// ReputationService owns profiles, ratings and the stored reputation derived from them.
type ReputationService struct {
	Tx           TxBeginner
	Jobs         ReputationJobReader
	Participants ReputationParticipantRepo
	Ratings      ReputationRatingRepo
	Wallets      WalletCreator
	Notifier     Notifier
	Logger       *slog.Logger
	MaxAttempts  int
	Now          func() time.Time
}

func NewReputationService(
	tx TxBeginner,
	jobs ReputationJobReader,
	participants ReputationParticipantRepo,
	ratings ReputationRatingRepo,
	wallets WalletCreator,
	notifier Notifier,
	logger *slog.Logger,
) *ReputationService {
	return &ReputationService{
		Tx:           tx,
		Jobs:         jobs,
		Participants: participants,
		Ratings:      ratings,
		Wallets:      wallets,
		Notifier:     notifier,
		Logger:       logger,
		MaxAttempts:  defaultMaxAttempts,
		Now:          time.Now,
	}
}

func (s *ReputationService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ReputationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type RatingRequest struct {
	SubjectID uuid.UUID
	Rater     models.Actor
	JobID     uuid.UUID
	Score     int
	Comment   string
}

// SubmitRating records an employer's rating of the worker who finished the job and
// stores the recomputed reputation in the same transaction.
func (s *ReputationService) SubmitRating(ctx context.Context, req RatingRequest) (*models.Reputation, error) {
	if req.Score < models.MinRatingScore || req.Score > models.MaxRatingScore {
		return nil, apperr.Validation("score must be between %d and %d", models.MinRatingScore, models.MaxRatingScore)
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return nil, apperr.Validation("comment is required")
	}
	if utf8.RuneCountInString(comment) > models.MaxRatingCommentLen {
		return nil, apperr.Validation("comment must be at most %d characters", models.MaxRatingCommentLen)
	}
	if req.Rater.Role != models.RoleEmployer {
		return nil, apperr.Authorization("only employers may rate workers")
	}

	var rep models.Reputation
	err := runInTx(ctx, s.Tx, s.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		job, err := s.Jobs.GetJob(ctx, tx, req.JobID)
		if err != nil {
			return err
		}
		if job.EmployerID != req.Rater.ParticipantID {
			return apperr.Authorization("only the job's employer may rate its worker")
		}
		if job.Status != models.JobStatusFinished {
			return apperr.Validation("job must be finished before it can be rated, it is %s", job.Status)
		}
		if !job.IsSelected(req.SubjectID) {
			return apperr.Validation("worker %s did not complete job %s", req.SubjectID, job.ID)
		}
		dup, err := s.Ratings.HasRating(ctx, tx, job.ID, req.Rater.ParticipantID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.New(apperr.KindDuplicateRating, "job %s already rated", job.ID)
		}
		subject, err := s.Participants.GetParticipant(ctx, tx, req.SubjectID)
		if err != nil {
			return err
		}
		rating := &models.Rating{
			ID:        uuid.New(),
			JobID:     job.ID,
			RaterID:   req.Rater.ParticipantID,
			SubjectID: req.SubjectID,
			Score:     req.Score,
			Comment:   comment,
			CreatedAt: s.now(),
		}
		if err := s.Ratings.CreateRating(ctx, tx, rating); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, subject); err != nil {
			return err
		}
		rep = subject.Reputation
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRating()
	jid := req.JobID
	deliver(ctx, s.Notifier, s.logger(), []models.Notification{{
		Type: models.NotifyRatingReceived, RecipientID: req.SubjectID, RecipientRole: models.RoleWorker,
		Title: "New rating", Message: fmt.Sprintf("You were rated %d, reputation is now %d", req.Score, rep.Score),
		JobID: &jid,
	}})
	return &rep, nil
}

// recompute derives p's reputation from its profile and full rating history and saves it.
func (s *ReputationService) recompute(ctx context.Context, tx pgx.Tx, p *models.Participant) error {
	ratings, err := s.Ratings.ListRatings(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	p.Reputation = reputation.Compute(p, reputation.Scores(ratings))
	p.UpdatedAt = s.now()
	return s.Participants.UpdateParticipant(ctx, tx, p)
}

// Refresh recomputes and stores the participant's reputation.
func (s *ReputationService) Refresh(ctx context.Context, participantID uuid.UUID) error {
	return runInTx(ctx, s.Tx, s.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		p, err := s.Participants.GetParticipant(ctx, tx, participantID)
		if err != nil {
			return err
		}
		return s.recompute(ctx, tx, p)
	})
}

type ProfileInput struct {
	Name               string
	Phone              string
	PhoneVerified      bool
	Email              string
	EmailVerified      bool
	IdentityVerified   bool
	PhotoURL           string
	Location           string
	Skills             []string
	ExperienceYears    int
	Languages          []string
	BusinessName       string
	BusinessRegistered bool
	BankLinked         bool
}

// SaveProfile creates or overwrites the caller's profile, recomputes its reputation and
// opens its wallet on first save.
func (s *ReputationService) SaveProfile(ctx context.Context, actor models.Actor, in ProfileInput) (*models.Participant, error) {
	if !actor.Role.Valid() {
		return nil, apperr.Authorization("unknown role %q", actor.Role)
	}
	if in.ExperienceYears < 0 {
		return nil, apperr.Validation("experience_years must not be negative")
	}

	var saved *models.Participant
	err := runInTx(ctx, s.Tx, s.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		now := s.now()
		p, err := s.Participants.GetParticipant(ctx, tx, actor.ParticipantID)
		created := false
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			p = &models.Participant{ID: actor.ParticipantID, Role: actor.Role, CreatedAt: now}
			created = true
		case err != nil:
			return err
		case p.Role != actor.Role:
			return apperr.Authorization("profile belongs to a %s", p.Role)
		}
		applyProfile(p, in)
		p.UpdatedAt = now

		ratings, err := s.Ratings.ListRatings(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		p.Reputation = reputation.Compute(p, reputation.Scores(ratings))

		if created {
			if err := s.Participants.CreateParticipant(ctx, tx, p); err != nil {
				return err
			}
			if err := s.Wallets.CreateWallet(ctx, tx, p.ID, p.Role); err != nil {
				return err
			}
		} else if err := s.Participants.UpdateParticipant(ctx, tx, p); err != nil {
			return err
		}
		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func applyProfile(p *models.Participant, in ProfileInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Phone = strings.TrimSpace(in.Phone)
	p.PhoneVerified = in.PhoneVerified
	p.Email = strings.TrimSpace(in.Email)
	p.EmailVerified = in.EmailVerified
	p.IdentityVerified = in.IdentityVerified
	p.PhotoURL = strings.TrimSpace(in.PhotoURL)
	p.Location = strings.TrimSpace(in.Location)
	p.Skills = in.Skills
	p.ExperienceYears = in.ExperienceYears
	p.Languages = in.Languages
	p.BusinessName = strings.TrimSpace(in.BusinessName)
	p.BusinessRegistered = in.BusinessRegistered
	p.BankLinked = in.BankLinked
}

func (s *ReputationService) Participant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return readOnce(ctx, func(ctx context.Context) (*models.Participant, error) {
		return s.Participants.GetParticipant(ctx, nil, id)
	})
}
