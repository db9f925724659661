package execution

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/sindh/backend/internal/models"
)

// InsertFunc inserts a job into river. main wires it after the client exists, which
// breaks the client -> worker -> service -> queue init cycle.
type InsertFunc func(ctx context.Context, args river.JobArgs) error

// Queue is the services-facing side of the background jobs: it satisfies
// services.Notifier and provides a services.CascadeEnqueueFunc.
type Queue struct {
	insert InsertFunc
}

func NewQueue(insert InsertFunc) *Queue {
	return &Queue{insert: insert}
}

func (q *Queue) Notify(ctx context.Context, n models.Notification) error {
	return q.insert(ctx, NotifyArgs{Notification: n})
}

func (q *Queue) EnqueueCascade(ctx context.Context, jobID, winnerID uuid.UUID) error {
	return q.insert(ctx, DeclineSiblingsArgs{JobID: jobID, WinnerID: winnerID})
}
