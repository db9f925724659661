package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

type PostJobInput struct {
	Title      string
	BaseAmount int64
}

// PostJob creates a job in posted for the calling employer.
func (l *Lifecycle) PostJob(ctx context.Context, actor models.Actor, in PostJobInput) (*models.Job, error) {
	if actor.Role != models.RoleEmployer {
		return nil, apperr.Authorization("only employers may post jobs")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.BaseAmount < 0 {
		return nil, apperr.Validation("base amount must not be negative")
	}
	now := l.now()
	job := &models.Job{
		ID:         uuid.New(),
		EmployerID: actor.ParticipantID,
		Title:      title,
		Status:     models.JobStatusPosted,
		BaseAmount: in.BaseAmount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	job.RecomputeTotal()
	err := runInTx(ctx, l.Tx, l.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		if err := l.requireProfile(ctx, tx, actor); err != nil {
			return err
		}
		return l.Jobs.CreateJob(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Apply creates the worker's application in applied. The first application moves the
// job from posted to applied.
func (l *Lifecycle) Apply(ctx context.Context, jobID uuid.UUID, actor models.Actor) (*models.JobApplication, error) {
	if actor.Role != models.RoleWorker {
		return nil, apperr.Authorization("only workers may apply")
	}
	var app *models.JobApplication
	var job *models.Job
	err := runInTx(ctx, l.Tx, l.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		job, err = l.Jobs.GetJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusPosted && job.Status != models.JobStatusApplied {
			return apperr.Conflict("job is %s and no longer accepts applications", job.Status)
		}
		if job.EmployerID == actor.ParticipantID {
			return apperr.Validation("employer cannot apply to their own job")
		}
		if err := l.requireProfile(ctx, tx, actor); err != nil {
			return err
		}
		existing, err := l.Applications.FindActiveApplication(ctx, tx, jobID, actor.ParticipantID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if existing != nil {
			return apperr.Conflict("worker already has an active application for this job")
		}

		now := l.now()
		app = &models.JobApplication{
			ID:         uuid.New(),
			JobID:      jobID,
			WorkerID:   actor.ParticipantID,
			EmployerID: job.EmployerID,
			CreatedAt:  now,
		}
		app.SetStatus(models.ApplicationStatusApplied, now, "applied")
		if err := l.Applications.CreateApplication(ctx, tx, app); err != nil {
			return err
		}
		n, err := l.Applications.CountApplications(ctx, tx, jobID)
		if err != nil {
			return err
		}
		job.ApplicantCount = n
		if job.Status == models.JobStatusPosted {
			job.Status = models.JobStatusApplied
		}
		job.UpdatedAt = now
		return l.Jobs.UpdateJob(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	jid, aid := job.ID, app.ID
	deliver(ctx, l.Notifier, l.logger(), []models.Notification{{
		Type: models.NotifyApplicationReceived, RecipientID: job.EmployerID, RecipientRole: models.RoleEmployer,
		Title: "New application", Message: fmt.Sprintf("A worker applied to %q", job.Title),
		JobID: &jid, ApplicationID: &aid,
	}})
	return app, nil
}

// ConfirmCompletion sets the caller's completion flag. Both flags must be set before the
// application can finish.
func (l *Lifecycle) ConfirmCompletion(ctx context.Context, applicationID uuid.UUID, actor models.Actor) (*models.JobApplication, error) {
	var app *models.JobApplication
	changed := false
	err := runInTx(ctx, l.Tx, l.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		app, err = l.Applications.GetApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		switch {
		case actor.Role == models.RoleWorker && actor.ParticipantID == app.WorkerID:
		case actor.Role == models.RoleEmployer && actor.ParticipantID == app.EmployerID:
		default:
			return apperr.Authorization("only the application's worker or employer may confirm completion")
		}
		if app.Status != models.ApplicationStatusPaymentPending && app.Status != models.ApplicationStatusPaid {
			return apperr.Validation("completion can only be confirmed in payment_pending or paid, application is %s", app.Status)
		}

		now := l.now()
		changed = false
		if actor.Role == models.RoleWorker && !app.WorkerConfirmedFinish {
			app.WorkerConfirmedFinish = true
			app.WorkerConfirmedAt = &now
			changed = true
		}
		if actor.Role == models.RoleEmployer && !app.EmployerConfirmedFinish {
			app.EmployerConfirmedFinish = true
			app.EmployerConfirmedAt = &now
			changed = true
		}
		if !changed {
			return nil
		}
		app.UpdatedAt = now
		return l.Applications.UpdateApplication(ctx, tx, app, nil)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		recipient, role := app.EmployerID, models.RoleEmployer
		if actor.Role == models.RoleEmployer {
			recipient, role = app.WorkerID, models.RoleWorker
		}
		jid, aid := app.JobID, app.ID
		deliver(ctx, l.Notifier, l.logger(), []models.Notification{{
			Type: models.NotifyCompletionConfirmed, RecipientID: recipient, RecipientRole: role,
			Title: "Completion confirmed", Message: fmt.Sprintf("The %s confirmed the work is complete", actor.Role),
			JobID: &jid, ApplicationID: &aid,
		}})
	}
	return app, nil
}

// AddCharges raises the job's additional charges while the work is underway or
// awaiting settlement. They are paid when the job finishes.
func (l *Lifecycle) AddCharges(ctx context.Context, jobID uuid.UUID, actor models.Actor, amount int64) (*models.Job, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	var job *models.Job
	err := runInTx(ctx, l.Tx, l.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		job, err = l.Jobs.GetJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleEmployer || actor.ParticipantID != job.EmployerID {
			return apperr.Authorization("only the job's employer may add charges")
		}
		switch job.Status {
		case models.JobStatusWorking, models.JobStatusPaymentPending, models.JobStatusPaid:
		default:
			return apperr.Validation("charges can only be added while the job is working, payment_pending or paid")
		}
		job.AdditionalCharges += amount
		job.RecomputeTotal()
		job.UpdatedAt = l.now()
		return l.Jobs.UpdateJob(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	if job.SelectedWorkerID != nil {
		jid := job.ID
		deliver(ctx, l.Notifier, l.logger(), []models.Notification{{
			Type: models.NotifyChargesAdded, RecipientID: *job.SelectedWorkerID, RecipientRole: models.RoleWorker,
			Title: "Charges added", Message: fmt.Sprintf("%d added to %q, total now %d", amount, job.Title, job.TotalPayment),
			JobID: &jid,
		}})
	}
	return job, nil
}

func (l *Lifecycle) Job(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return readOnce(ctx, func(ctx context.Context) (*models.Job, error) {
		return l.Jobs.GetJob(ctx, nil, id)
	})
}

func (l *Lifecycle) Application(ctx context.Context, id uuid.UUID) (*models.JobApplication, error) {
	return readOnce(ctx, func(ctx context.Context) (*models.JobApplication, error) {
		return l.Applications.GetApplication(ctx, nil, id)
	})
}

// EmployerJobs lists the calling employer's jobs, newest first.
func (l *Lifecycle) EmployerJobs(ctx context.Context, actor models.Actor) ([]*models.Job, error) {
	if actor.Role != models.RoleEmployer {
		return nil, apperr.Authorization("only employers have posted jobs")
	}
	return readOnce(ctx, func(ctx context.Context) ([]*models.Job, error) {
		return l.Jobs.ListByEmployer(ctx, actor.ParticipantID)
	})
}

// JobApplications lists every application to a job. Only the job's employer may see them.
func (l *Lifecycle) JobApplications(ctx context.Context, jobID uuid.UUID, actor models.Actor) ([]*models.JobApplication, error) {
	job, err := l.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleEmployer || job.EmployerID != actor.ParticipantID {
		return nil, apperr.Authorization("only the job's employer may list its applications")
	}
	return readOnce(ctx, func(ctx context.Context) ([]*models.JobApplication, error) {
		return l.Applications.ListByJob(ctx, jobID)
	})
}

// VisibleApplication returns the application if the actor is its worker or employer.
func (l *Lifecycle) VisibleApplication(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.JobApplication, error) {
	app, err := l.Application(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ParticipantID != app.WorkerID && actor.ParticipantID != app.EmployerID {
		return nil, apperr.Authorization("application belongs to another participant")
	}
	return app, nil
}

// requireProfile rejects actors who never saved a profile: without one there is no
// wallet to pay from or into.
func (l *Lifecycle) requireProfile(ctx context.Context, tx pgx.Tx, actor models.Actor) error {
	p, err := l.Participants.GetParticipant(ctx, tx, actor.ParticipantID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("%s %s has no profile, save one first", actor.Role, actor.ParticipantID)
	}
	if err != nil {
		return err
	}
	if p.Role != actor.Role {
		return apperr.Authorization("profile belongs to a %s", p.Role)
	}
	return nil
}
