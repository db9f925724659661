package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/models"
)

const cascadeNote = "auto-declined: work started with selected worker"

// CascadeEnqueueFunc schedules a background rerun of the decline cascade.
type CascadeEnqueueFunc func(ctx context.Context, jobID, winnerID uuid.UUID) error

// DeclineSiblings moves every other application of the job still in applied to
// declined. Rerunning it after success changes nothing.
func (l *Lifecycle) DeclineSiblings(ctx context.Context, jobID, winnerID uuid.UUID) ([]models.ApplicationRef, error) {
	refs, err := l.Applications.DeclineApplied(ctx, jobID, winnerID, cascadeNote, l.now())
	if err != nil {
		metrics.RecordCascade(0, true)
		return nil, err
	}
	metrics.RecordCascade(len(refs), false)
	return refs, nil
}

// runCascade runs only on the request whose transition to working committed. A failure
// leaves the transition in place and hands the cascade to the background queue.
func (l *Lifecycle) runCascade(ctx context.Context, jobID, winnerID uuid.UUID, res *TransitionResult) []models.ApplicationRef {
	refs, err := l.DeclineSiblings(ctx, jobID, winnerID)
	if err == nil {
		res.Declined = len(refs)
		return refs
	}
	l.logger().Error("decline cascade failed", "job_id", jobID, "application_id", winnerID, "error", err)
	res.warn("declining other applications failed and was queued for retry: %v", err)
	if l.EnqueueCascade == nil {
		return nil
	}
	if err := l.EnqueueCascade(ctx, jobID, winnerID); err != nil {
		l.logger().Error("enqueue decline cascade failed", "job_id", jobID, "error", err)
		res.warn("queueing decline retry failed: %v", err)
	}
	return nil
}

// SweepCascades re-runs the decline cascade for up to limit jobs that still have applied
// siblings next to a working winner. It returns how many applications it declined.
func (l *Lifecycle) SweepCascades(ctx context.Context, limit int) (int, error) {
	pending, err := l.Applications.PendingCascades(ctx, limit)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range pending {
		refs, err := l.DeclineSiblings(ctx, p.JobID, p.WinnerID)
		if err != nil {
			return total, err
		}
		total += len(refs)
		if len(refs) > 0 {
			l.logger().Info("swept stale applications", "job_id", p.JobID, "application_id", p.WinnerID, "declined", len(refs))
		}
	}
	return total, nil
}
