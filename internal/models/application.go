package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusChange is one entry of an application's append-only status history.
type StatusChange struct {
	Status    ApplicationStatus `json:"status"`
	ChangedAt time.Time         `json:"changed_at"`
	Note      string            `json:"note,omitempty"`
}

// JobApplication is one worker's claim on one job.
type JobApplication struct {
	ID                      uuid.UUID         `json:"id"`
	JobID                   uuid.UUID         `json:"job_id"`
	WorkerID                uuid.UUID         `json:"worker_id"`
	EmployerID              uuid.UUID         `json:"employer_id"`
	Status                  ApplicationStatus `json:"status"`
	BaseAmountPaid          bool              `json:"base_amount_paid"`
	BaseAmountPaidAt        *time.Time        `json:"base_amount_paid_at,omitempty"`
	AdditionalChargesPaid   bool              `json:"additional_charges_paid"`
	AdditionalChargesPaidAt *time.Time        `json:"additional_charges_paid_at,omitempty"`
	WorkerConfirmedFinish   bool              `json:"worker_confirmed_finish"`
	WorkerConfirmedAt       *time.Time        `json:"worker_confirmed_at,omitempty"`
	EmployerConfirmedFinish bool              `json:"employer_confirmed_finish"`
	EmployerConfirmedAt     *time.Time        `json:"employer_confirmed_at,omitempty"`
	History                 []StatusChange    `json:"status_history"`
	Version                 int64             `json:"version"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// SetStatus moves the application to s and appends the matching history entry, keeping
// the last history entry equal to the current status.
func (a *JobApplication) SetStatus(s ApplicationStatus, at time.Time, note string) StatusChange {
	change := StatusChange{Status: s, ChangedAt: at, Note: note}
	a.Status = s
	a.History = append(a.History, change)
	a.UpdatedAt = at
	return change
}

// BothConfirmed reports whether worker and employer have both confirmed completion.
func (a *JobApplication) BothConfirmed() bool {
	return a.WorkerConfirmedFinish && a.EmployerConfirmedFinish
}

// ApplicationRef identifies an application touched by a bulk status change.
type ApplicationRef struct {
	ID       uuid.UUID `json:"id"`
	WorkerID uuid.UUID `json:"worker_id"`
}

// PendingCascade names a job whose winning application is past accepted while other
// applications are still in applied.
type PendingCascade struct {
	JobID    uuid.UUID
	WinnerID uuid.UUID
}
