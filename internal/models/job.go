package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is a posted work order. Amounts are in minor currency units (paise).
type Job struct {
	ID                uuid.UUID  `json:"id"`
	EmployerID        uuid.UUID  `json:"employer_id"`
	SelectedWorkerID  *uuid.UUID `json:"selected_worker_id,omitempty"`
	Title             string     `json:"title"`
	Status            JobStatus  `json:"status"`
	BaseAmount        int64      `json:"base_amount"`
	AdditionalCharges int64      `json:"additional_charges"`
	TotalPayment      int64      `json:"total_payment"`
	ApplicantCount    int        `json:"applicant_count"`
	WorkStartedAt     *time.Time `json:"work_started_at,omitempty"`
	BasePaidAt        *time.Time `json:"base_paid_at,omitempty"`
	AdditionalPaidAt  *time.Time `json:"additional_paid_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// RecomputeTotal restores total == base + additional. Call after touching either amount.
func (j *Job) RecomputeTotal() {
	j.TotalPayment = j.BaseAmount + j.AdditionalCharges
}

// IsSelected reports whether workerID is the job's selected worker.
func (j *Job) IsSelected(workerID uuid.UUID) bool {
	return j.SelectedWorkerID != nil && *j.SelectedWorkerID == workerID
}
