package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/sindh/backend/internal/models"
)

// DeclineSiblingsArgs reruns the decline cascade for a job whose inline cascade failed.
type DeclineSiblingsArgs struct {
	JobID    uuid.UUID `json:"job_id"`
	WinnerID uuid.UUID `json:"winner_application_id"`
}

func (DeclineSiblingsArgs) Kind() string { return "decline_siblings" }

// InsertOpts collapses repeated enqueues for the same job into one pending job.
func (DeclineSiblingsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// CascadeRunner is implemented by services.Lifecycle.
type CascadeRunner interface {
	DeclineSiblings(ctx context.Context, jobID, winnerID uuid.UUID) ([]models.ApplicationRef, error)
}

type DeclineSiblingsWorker struct {
	river.WorkerDefaults[DeclineSiblingsArgs]
	runner CascadeRunner
	logger *slog.Logger
}

func NewDeclineSiblingsWorker(runner CascadeRunner, logger *slog.Logger) *DeclineSiblingsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeclineSiblingsWorker{runner: runner, logger: logger}
}

func (w *DeclineSiblingsWorker) Work(ctx context.Context, job *river.Job[DeclineSiblingsArgs]) error {
	refs, err := w.runner.DeclineSiblings(ctx, job.Args.JobID, job.Args.WinnerID)
	if err != nil {
		return fmt.Errorf("decline siblings of job %s: %w", job.Args.JobID, err)
	}
	w.logger.Info("decline cascade completed", "job_id", job.Args.JobID, "declined", len(refs))
	return nil
}

// NotifyArgs carries one notification to the delivery worker.
type NotifyArgs struct {
	Notification models.Notification `json:"notification"`
}

func (NotifyArgs) Kind() string { return "notify" }

func (NotifyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

// Publisher is implemented by notify.Publisher.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

type NotifyWorker struct {
	river.WorkerDefaults[NotifyArgs]
	publisher Publisher
}

func NewNotifyWorker(p Publisher) *NotifyWorker {
	return &NotifyWorker{publisher: p}
}

func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[NotifyArgs]) error {
	return w.publisher.Publish(ctx, job.Args.Notification)
}
