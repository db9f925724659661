package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRatingScore      = 0
	MaxRatingScore      = 100
	MaxRatingCommentLen = 500
)

// Rating is an employer's rating of the worker who finished a job.
type Rating struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	RaterID   uuid.UUID `json:"rater_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
