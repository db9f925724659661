package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/models"
)

const (
	SubjectJob         = "job"
	SubjectApplication = "application"
)

// LifecycleJobRepo is the job repository interface used by the lifecycle.
type LifecycleJobRepo interface {
	CreateJob(ctx context.Context, tx pgx.Tx, j *models.Job) error
	GetJob(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, tx pgx.Tx, j *models.Job) error
	ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]*models.Job, error)
}

// LifecycleApplicationRepo is the application repository interface used by the lifecycle.
type LifecycleApplicationRepo interface {
	GetApplication(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobApplication, error)
	FindActiveApplication(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID) (*models.JobApplication, error)
	CreateApplication(ctx context.Context, tx pgx.Tx, a *models.JobApplication) error
	UpdateApplication(ctx context.Context, tx pgx.Tx, a *models.JobApplication, appended []models.StatusChange) error
	CountApplications(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (int, error)
	DeclineApplied(ctx context.Context, jobID, winnerID uuid.UUID, note string, at time.Time) ([]models.ApplicationRef, error)
	CancelActive(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, note string, at time.Time) ([]models.ApplicationRef, error)
	PendingCascades(ctx context.Context, limit int) ([]models.PendingCascade, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobApplication, error)
}

// ParticipantLookup resolves the profile behind an actor. A profile and its wallet are
// created together, so a found profile implies a wallet.
type ParticipantLookup interface {
	GetParticipant(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Participant, error)
}

// ReputationRefresher recomputes a participant's stored reputation.
type ReputationRefresher interface {
	Refresh(ctx context.Context, participantID uuid.UUID) error
}

// Lifecycle is the single entry point for status changes on jobs and applications. It
// keeps a job and its winning application in step, posts the payments tied to status
// edges and runs the side effects that follow a commit.
type Lifecycle struct {
	Tx             TxBeginner
	Jobs           LifecycleJobRepo
	Applications   LifecycleApplicationRepo
	Participants   ParticipantLookup
	Payments       *PaymentService
	Reputation     ReputationRefresher
	Notifier       Notifier
	EnqueueCascade CascadeEnqueueFunc
	Logger         *slog.Logger
	MaxAttempts    int
	Now            func() time.Time
}

func NewLifecycle(
	tx TxBeginner,
	jobs LifecycleJobRepo,
	apps LifecycleApplicationRepo,
	participants ParticipantLookup,
	payments *PaymentService,
	reputation ReputationRefresher,
	notifier Notifier,
	enqueue CascadeEnqueueFunc,
	logger *slog.Logger,
) *Lifecycle {
	return &Lifecycle{
		Tx:             tx,
		Jobs:           jobs,
		Applications:   apps,
		Participants:   participants,
		Payments:       payments,
		Reputation:     reputation,
		Notifier:       notifier,
		EnqueueCascade: enqueue,
		Logger:         logger,
		MaxAttempts:    defaultMaxAttempts,
		Now:            time.Now,
	}
}

type TransitionRequest struct {
	SubjectType   string
	SubjectID     uuid.UUID
	Target        string
	Actor         models.Actor
	Amount        *int64
	ApplicationID *uuid.UUID
	Note          string
}

type TransitionResult struct {
	Job         *models.Job                 `json:"job"`
	Application *models.JobApplication      `json:"application,omitempty"`
	NoOp        bool                        `json:"noop"`
	Declined    int                         `json:"declined"`
	Cancelled   int                         `json:"cancelled"`
	Postings    []*models.WalletTransaction `json:"postings,omitempty"`
	Warnings    []string                    `json:"warnings,omitempty"`
}

func (r *TransitionResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// transitionPlan is what one attempt decided to change. Empty targets mean "unchanged".
type transitionPlan struct {
	job        *models.Job
	app        *models.JobApplication
	jobTarget  models.JobStatus
	appTarget  models.ApplicationStatus
	cancelRest bool
	noop       bool

	postings  []*models.WalletTransaction
	cancelled []models.ApplicationRef
}

func (l *Lifecycle) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// RequestTransition validates and applies a status change as one transaction, then runs
// the decline cascade, reputation refresh and notifications. Requesting the current
// status succeeds without writing anything.
func (l *Lifecycle) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	target, err := normalizeTarget(req.SubjectType, req.Target)
	if err != nil {
		return nil, err
	}
	if !req.Actor.Role.Valid() {
		return nil, apperr.Authorization("unknown role %q", req.Actor.Role)
	}

	var plan *transitionPlan
	err = runInTx(ctx, l.Tx, l.MaxAttempts, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if req.SubjectType == SubjectJob {
			plan, err = l.planJob(ctx, tx, req, models.JobStatus(target))
		} else {
			plan, err = l.planApplication(ctx, tx, req, models.ApplicationStatus(target))
		}
		if err != nil || plan.noop {
			return err
		}
		if err := checkAmount(plan, req.Amount); err != nil {
			return err
		}
		return l.apply(ctx, tx, plan, req.Note)
	})
	if err != nil {
		metrics.RecordTransition(req.SubjectType, target, resultLabel(err))
		return nil, err
	}

	res := &TransitionResult{Job: plan.job, Application: plan.app, NoOp: plan.noop}
	if plan.noop {
		metrics.RecordTransition(req.SubjectType, target, "noop")
		return res, nil
	}
	metrics.RecordTransition(req.SubjectType, target, "ok")
	res.Postings = plan.postings
	res.Cancelled = len(plan.cancelled)
	l.afterCommit(ctx, plan, res)
	return res, nil
}

func normalizeTarget(subject, raw string) (string, error) {
	switch subject {
	case SubjectJob:
		s, ok := models.ParseJobStatus(raw)
		if !ok {
			return "", apperr.Validation("unknown job status %q", raw)
		}
		return string(s), nil
	case SubjectApplication:
		s, ok := models.ParseApplicationStatus(raw)
		if !ok {
			return "", apperr.Validation("unknown application status %q", raw)
		}
		return string(s), nil
	}
	return "", apperr.Validation("unknown subject type %q", subject)
}

func resultLabel(err error) string {
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func (l *Lifecycle) planApplication(ctx context.Context, tx pgx.Tx, req TransitionRequest, target models.ApplicationStatus) (*transitionPlan, error) {
	app, err := l.Applications.GetApplication(ctx, tx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	job, err := l.Jobs.GetJob(ctx, tx, app.JobID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(req.Actor, job, app, string(target)); err != nil {
		return nil, err
	}
	if app.Status == target {
		return &transitionPlan{job: job, app: app, noop: true}, nil
	}
	if !app.Status.CanTransitionTo(target) {
		return nil, invalidApplication(app.Status, target)
	}
	if _, shared := target.JobStatus(); shared {
		return planPair(job, app, target)
	}

	p := &transitionPlan{job: job, app: app, appTarget: target}
	if target == models.ApplicationStatusCancelled && job.IsSelected(app.WorkerID) && !job.Status.IsTerminal() {
		if !job.Status.CanTransitionTo(models.JobStatusCancelled) {
			return nil, invalidJob(job.Status, models.JobStatusCancelled)
		}
		p.jobTarget = models.JobStatusCancelled
		p.cancelRest = true
	}
	return p, nil
}

func (l *Lifecycle) planJob(ctx context.Context, tx pgx.Tx, req TransitionRequest, target models.JobStatus) (*transitionPlan, error) {
	job, err := l.Jobs.GetJob(ctx, tx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	var winner *models.JobApplication
	if job.SelectedWorkerID != nil {
		winner, err = l.Applications.FindActiveApplication(ctx, tx, job.ID, *job.SelectedWorkerID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	if err := authorizeTransition(req.Actor, job, winner, string(target)); err != nil {
		return nil, err
	}
	// A named candidate must be the selected worker, even on an already accepted job.
	var candidate *models.JobApplication
	if target == models.JobStatusAccepted && req.ApplicationID != nil {
		candidate, err = l.Applications.GetApplication(ctx, tx, *req.ApplicationID)
		if err != nil {
			return nil, err
		}
		if candidate.JobID != job.ID {
			return nil, apperr.Validation("application %s does not belong to job %s", candidate.ID, job.ID)
		}
		if job.SelectedWorkerID != nil && !job.IsSelected(candidate.WorkerID) {
			return nil, apperr.Conflict("job %s already accepted another worker", job.ID)
		}
	}
	if job.Status == target {
		return &transitionPlan{job: job, app: winner, noop: true}, nil
	}
	if !job.Status.CanTransitionTo(target) {
		return nil, invalidJob(job.Status, target)
	}

	switch target {
	case models.JobStatusApplied:
		n, err := l.Applications.CountApplications(ctx, tx, job.ID)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, apperr.Validation("job has no applications")
		}
		return &transitionPlan{job: job, jobTarget: target}, nil

	case models.JobStatusCancelled:
		p := &transitionPlan{job: job, app: winner, jobTarget: target, cancelRest: true}
		if winner != nil && !winner.Status.IsTerminal() {
			if !winner.Status.CanTransitionTo(models.ApplicationStatusCancelled) {
				return nil, invalidApplication(winner.Status, models.ApplicationStatusCancelled)
			}
			p.appTarget = models.ApplicationStatusCancelled
		}
		return p, nil

	case models.JobStatusAccepted:
		if candidate == nil {
			return nil, apperr.Validation("application_id is required to accept a job")
		}
		return planPair(job, candidate, models.ApplicationStatusAccepted)
	}

	if winner == nil {
		return nil, apperr.Conflict("job has no active selected application")
	}
	appTarget, _ := target.ApplicationStatus()
	return planPair(job, winner, appTarget)
}

// planPair moves a job and its winning application to the same shared status.
func planPair(job *models.Job, app *models.JobApplication, target models.ApplicationStatus) (*transitionPlan, error) {
	jobTarget, _ := target.JobStatus()
	if jobTarget == models.JobStatusAccepted {
		if job.SelectedWorkerID != nil && !job.IsSelected(app.WorkerID) {
			return nil, apperr.Conflict("job %s already accepted another worker", job.ID)
		}
	} else if !job.IsSelected(app.WorkerID) {
		return nil, apperr.Conflict("application %s is not the job's selected application", app.ID)
	}

	p := &transitionPlan{job: job, app: app}
	if app.Status != target {
		if !app.Status.CanTransitionTo(target) {
			return nil, invalidApplication(app.Status, target)
		}
		p.appTarget = target
	}
	if job.Status != jobTarget {
		if !job.Status.CanTransitionTo(jobTarget) {
			return nil, invalidJob(job.Status, jobTarget)
		}
		p.jobTarget = jobTarget
	}
	if target == models.ApplicationStatusFinished && !app.BothConfirmed() {
		return nil, apperr.New(apperr.KindIncompleteConfirmation,
			"worker confirmed: %t, employer confirmed: %t", app.WorkerConfirmedFinish, app.EmployerConfirmedFinish)
	}
	return p, nil
}

// authorizeTransition admits only the job's employer and the application's worker.
// Selecting, declining and paying belong to the employer.
func authorizeTransition(actor models.Actor, job *models.Job, app *models.JobApplication, target string) error {
	isEmployer := actor.Role == models.RoleEmployer && actor.ParticipantID == job.EmployerID
	isWorker := actor.Role == models.RoleWorker && app != nil && actor.ParticipantID == app.WorkerID
	switch target {
	case string(models.ApplicationStatusAccepted), string(models.ApplicationStatusDeclined), string(models.JobStatusPaid):
		if !isEmployer {
			return apperr.Authorization("only the job's employer may move it to %s", target)
		}
		return nil
	}
	if !isEmployer && !isWorker {
		return apperr.Authorization("actor is not a party to this job")
	}
	return nil
}

// checkAmount rejects a client-supplied amount that disagrees with what the edge settles.
func checkAmount(p *transitionPlan, amount *int64) error {
	if amount == nil {
		return nil
	}
	switch p.jobTarget {
	case models.JobStatusPaid:
		if *amount != p.job.BaseAmount {
			return apperr.Validation("amount %d does not match base amount %d", *amount, p.job.BaseAmount)
		}
	case models.JobStatusFinished:
		if *amount != p.job.AdditionalCharges {
			return apperr.Validation("amount %d does not match additional charges %d", *amount, p.job.AdditionalCharges)
		}
	default:
		return apperr.Validation("amount only applies to paid and finished transitions")
	}
	return nil
}

func invalidJob(from, to models.JobStatus) error {
	return apperr.InvalidTransition(SubjectJob, string(from), string(to), models.JobStatusStrings(from.AllowedTargets()))
}

func invalidApplication(from, to models.ApplicationStatus) error {
	return apperr.InvalidTransition(SubjectApplication, string(from), string(to), models.ApplicationStatusStrings(from.AllowedTargets()))
}

// apply performs the planned writes inside tx. Any error rolls back every write,
// including ledger postings.
func (l *Lifecycle) apply(ctx context.Context, tx pgx.Tx, p *transitionPlan, note string) error {
	now := l.now()
	job, app := p.job, p.app

	switch p.jobTarget {
	case models.JobStatusAccepted:
		job.SelectedWorkerID = &app.WorkerID
	case models.JobStatusWorking:
		job.WorkStartedAt = &now
	case models.JobStatusPaid:
		postings, err := l.Payments.SettleBase(ctx, tx, job, app)
		if err != nil {
			return err
		}
		p.postings = append(p.postings, postings...)
		app.BaseAmountPaid = true
		app.BaseAmountPaidAt = &now
		job.BasePaidAt = &now
	case models.JobStatusFinished:
		postings, err := l.Payments.SettleFinish(ctx, tx, job, app)
		if err != nil {
			return err
		}
		p.postings = append(p.postings, postings...)
		if job.AdditionalCharges > 0 && !app.AdditionalChargesPaid {
			app.AdditionalChargesPaid = true
			app.AdditionalChargesPaidAt = &now
			job.AdditionalPaidAt = &now
		}
		job.CompletedAt = &now
		job.RecomputeTotal()
	}

	if p.appTarget != "" {
		if note == "" {
			note = "moved to " + string(p.appTarget)
		}
		change := app.SetStatus(p.appTarget, now, note)
		if err := l.Applications.UpdateApplication(ctx, tx, app, []models.StatusChange{change}); err != nil {
			return err
		}
	}
	if p.jobTarget != "" {
		job.Status = p.jobTarget
		job.UpdatedAt = now
		if err := l.Jobs.UpdateJob(ctx, tx, job); err != nil {
			return err
		}
	}
	if p.cancelRest {
		if note == "" {
			note = "job cancelled"
		}
		refs, err := l.Applications.CancelActive(ctx, tx, job.ID, note, now)
		if err != nil {
			return err
		}
		p.cancelled = refs
	}
	return nil
}

func (l *Lifecycle) afterCommit(ctx context.Context, p *transitionPlan, res *TransitionResult) {
	var declined []models.ApplicationRef
	if p.jobTarget == models.JobStatusWorking && p.app != nil {
		declined = l.runCascade(ctx, p.job.ID, p.app.ID, res)
	}
	if p.jobTarget == models.JobStatusFinished && l.Reputation != nil && p.app != nil {
		for _, id := range []uuid.UUID{p.app.WorkerID, p.job.EmployerID} {
			if err := l.Reputation.Refresh(ctx, id); err != nil {
				l.logger().Warn("reputation refresh failed", "participant_id", id, "error", err)
				res.warn("reputation refresh for %s failed: %v", id, err)
			}
		}
	}
	res.Warnings = append(res.Warnings, deliver(ctx, l.Notifier, l.logger(), transitionNotifications(p, declined))...)
}

func transitionNotifications(p *transitionPlan, declined []models.ApplicationRef) []models.Notification {
	job := p.job
	jobID := job.ID
	var out []models.Notification

	status := string(p.appTarget)
	if status == "" {
		status = string(p.jobTarget)
	}
	msg := fmt.Sprintf("%q is now %s", job.Title, status)
	out = append(out, models.Notification{
		Type: models.NotifyStatusChanged, RecipientID: job.EmployerID, RecipientRole: models.RoleEmployer,
		Title: "Job updated", Message: msg, JobID: &jobID,
	})
	if p.app != nil && p.appTarget != "" {
		appID := p.app.ID
		out = append(out, models.Notification{
			Type: models.NotifyStatusChanged, RecipientID: p.app.WorkerID, RecipientRole: models.RoleWorker,
			Title: "Application updated", Message: msg, JobID: &jobID, ApplicationID: &appID,
		})
	}
	for _, ref := range declined {
		appID := ref.ID
		out = append(out, models.Notification{
			Type: models.NotifyApplicationDeclined, RecipientID: ref.WorkerID, RecipientRole: models.RoleWorker,
			Title: "Application declined", Message: fmt.Sprintf("Another worker was selected for %q", job.Title),
			JobID: &jobID, ApplicationID: &appID,
		})
	}
	for _, ref := range p.cancelled {
		appID := ref.ID
		out = append(out, models.Notification{
			Type: models.NotifyStatusChanged, RecipientID: ref.WorkerID, RecipientRole: models.RoleWorker,
			Title: "Job cancelled", Message: fmt.Sprintf("%q was cancelled", job.Title),
			JobID: &jobID, ApplicationID: &appID,
		})
	}
	for _, e := range p.postings {
		role := models.RoleWorker
		if e.WalletID == job.EmployerID {
			role = models.RoleEmployer
		}
		out = append(out, models.Notification{
			Type: models.NotifyPaymentPosted, RecipientID: e.WalletID, RecipientRole: role,
			Title: "Wallet updated", Message: fmt.Sprintf("%s of %d: %s", e.Type, e.Amount, e.Description),
			JobID: e.JobID, ApplicationID: e.ApplicationID,
		})
	}
	return out
}
