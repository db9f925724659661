package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

// Shortlist orderings accepted by Shortlister.Rank.
const (
	RankAuto       = "auto"
	RankReputation = "reputation"
	RankExperience = "experience"
)

// ProfileReader is the minimal interface required for ranking applicants.
type ProfileReader interface {
	GetParticipant(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Participant, error)
}

// ApplicationLister returns a job's applications after checking the caller may see them.
type ApplicationLister interface {
	JobApplications(ctx context.Context, jobID uuid.UUID, actor models.Actor) ([]*models.JobApplication, error)
}

// Shortlister orders the open applications on a job so the employer can pick a worker.
type Shortlister struct {
	Applications ApplicationLister
	Profiles     ProfileReader
}

func NewShortlister(apps ApplicationLister, profiles ProfileReader) *Shortlister {
	return &Shortlister{Applications: apps, Profiles: profiles}
}

// Candidate is one open application with the worker's public profile.
type Candidate struct {
	Application *models.JobApplication `json:"application"`
	Worker      *models.Participant    `json:"worker"`
	Score       float64                `json:"score"`
}

// candidate holds the normalized inputs to the auto score.
type candidate struct {
	Candidate
	reputation   float64 // 0–1
	completeness float64 // 0–1
	ratings      int
	experience   int
}

func rankPreference(raw string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(raw)); p {
	case "":
		return RankAuto, nil
	case RankAuto, RankReputation, RankExperience:
		return p, nil
	default:
		return "", apperr.Validation("unknown ordering %q (want auto, reputation or experience)", raw)
	}
}

// Rank returns the job's applications still in applied, best first. Profiles that
// were never saved rank with zero reputation.
func (s *Shortlister) Rank(ctx context.Context, jobID uuid.UUID, actor models.Actor, by string) ([]Candidate, error) {
	pref, err := rankPreference(by)
	if err != nil {
		return nil, err
	}
	apps, err := s.Applications.JobApplications(ctx, jobID, actor)
	if err != nil {
		return nil, err
	}
	var candidates []candidate
	for _, app := range apps {
		if app.Status != models.ApplicationStatusApplied {
			continue
		}
		p, err := readOnce(ctx, func(ctx context.Context) (*models.Participant, error) {
			return s.Profiles.GetParticipant(ctx, nil, app.WorkerID)
		})
		if errors.Is(err, apperr.ErrNotFound) {
			p = &models.Participant{ID: app.WorkerID, Role: models.RoleWorker}
		} else if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{
			Candidate:    Candidate{Application: app, Worker: p},
			reputation:   float64(p.Reputation.Score) / 100,
			completeness: float64(p.Reputation.CompletenessPct) / 100,
			ratings:      p.Reputation.RatingsCount,
			experience:   p.ExperienceYears,
		})
	}
	scoreAndSort(candidates, pref)

	out := make([]Candidate, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].Candidate
	}
	return out, nil
}

// scoreAndSort sorts candidates by preference (best first). Ties keep application order.
func scoreAndSort(candidates []candidate, pref string) {
	switch pref {
	case RankReputation:
		for i := range candidates {
			candidates[i].Score = candidates[i].reputation
		}
	case RankExperience:
		for i := range candidates {
			candidates[i].Score = float64(candidates[i].experience)
		}
	default:
		maxRatings, maxYears := 1, 1
		for i := range candidates {
			maxRatings = max(maxRatings, candidates[i].ratings)
			maxYears = max(maxYears, candidates[i].experience)
		}
		for i := range candidates {
			c := &candidates[i]
			ratingsNorm := float64(c.ratings) / float64(maxRatings)
			yearsNorm := float64(c.experience) / float64(maxYears)
			c.Score = c.reputation*0.50 + c.completeness*0.20 + ratingsNorm*0.15 + yearsNorm*0.15
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
