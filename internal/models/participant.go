package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the marketplace role resolved by the auth layer.
type Role string

const (
	RoleWorker   Role = "worker"
	RoleEmployer Role = "employer"
)

func (r Role) Valid() bool { return r == RoleWorker || r == RoleEmployer }

// Actor is the authenticated caller of an operation.
type Actor struct {
	ParticipantID uuid.UUID
	Role          Role
}

// Reputation is derived by the reputation engine and never edited directly.
type Reputation struct {
	Score           int `json:"score"`
	RatingsCount    int `json:"ratings_count"`
	CompletenessPct int `json:"completeness_pct"`
}

// Participant is a worker or employer profile.
type Participant struct {
	ID                 uuid.UUID  `json:"id"`
	Role               Role       `json:"role"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone"`
	PhoneVerified      bool       `json:"phone_verified"`
	Email              string     `json:"email"`
	EmailVerified      bool       `json:"email_verified"`
	IdentityVerified   bool       `json:"identity_verified"`
	PhotoURL           string     `json:"photo_url"`
	Location           string     `json:"location"`
	Skills             []string   `json:"skills"`
	ExperienceYears    int        `json:"experience_years"`
	Languages          []string   `json:"languages"`
	BusinessName       string     `json:"business_name"`
	BusinessRegistered bool       `json:"business_registered"`
	BankLinked         bool       `json:"bank_linked"`
	Reputation         Reputation `json:"reputation"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
