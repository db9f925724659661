package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/models"
	"github.com/sindh/backend/internal/services"
)

// Lifecycle is the subset of services.Lifecycle the HTTP layer drives.
type Lifecycle interface {
	PostJob(ctx context.Context, actor models.Actor, in services.PostJobInput) (*models.Job, error)
	Apply(ctx context.Context, jobID uuid.UUID, actor models.Actor) (*models.JobApplication, error)
	RequestTransition(ctx context.Context, req services.TransitionRequest) (*services.TransitionResult, error)
	ConfirmCompletion(ctx context.Context, applicationID uuid.UUID, actor models.Actor) (*models.JobApplication, error)
	AddCharges(ctx context.Context, jobID uuid.UUID, actor models.Actor, amount int64) (*models.Job, error)
	Job(ctx context.Context, id uuid.UUID) (*models.Job, error)
	EmployerJobs(ctx context.Context, actor models.Actor) ([]*models.Job, error)
	JobApplications(ctx context.Context, jobID uuid.UUID, actor models.Actor) ([]*models.JobApplication, error)
	VisibleApplication(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.JobApplication, error)
}

// Reputation is the subset of services.ReputationService the HTTP layer drives.
type Reputation interface {
	SubmitRating(ctx context.Context, req services.RatingRequest) (*models.Reputation, error)
	SaveProfile(ctx context.Context, actor models.Actor, in services.ProfileInput) (*models.Participant, error)
	Participant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

// Shortlist ranks the open applications on a job.
type Shortlist interface {
	Rank(ctx context.Context, jobID uuid.UUID, actor models.Actor, by string) ([]services.Candidate, error)
}

type Wallets interface {
	Deposit(ctx context.Context, actor models.Actor, amount int64, reference string) (*models.Wallet, error)
	Wallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	Statement(ctx context.Context, id uuid.UUID) ([]*models.WalletTransaction, error)
	BalanceAsOf(ctx context.Context, id uuid.UUID, at time.Time) (models.Balances, error)
}

// Inbox reads a participant's recent notifications.
type Inbox interface {
	Inbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Notification, error)
}

// Handler serves the /api/v1 endpoints. Every route expects middleware.ActorAuth in front.
type Handler struct {
	Lifecycle  Lifecycle
	Reputation Reputation
	Shortlist  Shortlist
	Wallets    Wallets
	Inbox      Inbox
	Validator  *Validator
	Logger     *slog.Logger
}

func New(lc Lifecycle, rep Reputation, shortlist Shortlist, wallets Wallets, inbox Inbox, v *Validator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Lifecycle: lc, Reputation: rep, Shortlist: shortlist, Wallets: wallets, Inbox: inbox, Validator: v, Logger: logger}
}
