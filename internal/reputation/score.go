// Package reputation computes the ShaktiScore trust metric. Everything here is pure:
// the score is always recomputed from a profile snapshot and its rating history.
package reputation

import (
	"strings"

	"github.com/sindh/backend/internal/models"
)

// Baseline is what a freshly registered participant scores before any attribute is filled.
const Baseline = 10

const (
	minScore = 0
	maxScore = 100
)

// contribution is a fixed point value awarded when has reports the attribute as filled
// or verified. roles limits it to worker or employer profiles; empty means both.
type contribution struct {
	name   string
	points int
	roles  []models.Role
	has    func(p *models.Participant) bool
}

var contributions = []contribution{
	{name: "identity_verified", points: 20, has: func(p *models.Participant) bool { return p.IdentityVerified }},
	{name: "phone_verified", points: 10, has: func(p *models.Participant) bool { return p.PhoneVerified }},
	{name: "email_verified", points: 5, has: func(p *models.Participant) bool { return p.EmailVerified }},
	{name: "photo", points: 5, has: func(p *models.Participant) bool { return filled(p.PhotoURL) }},
	{name: "location", points: 5, has: func(p *models.Participant) bool { return filled(p.Location) }},
	{name: "multilingual", points: 10, has: func(p *models.Participant) bool { return countFilled(p.Languages) >= 2 }},
	{name: "bank_linked", points: 10, has: func(p *models.Participant) bool { return p.BankLinked }},
	{name: "skills", points: 10, roles: []models.Role{models.RoleWorker},
		has: func(p *models.Participant) bool { return countFilled(p.Skills) > 0 }},
	{name: "experience", points: 10, roles: []models.Role{models.RoleWorker},
		has: func(p *models.Participant) bool { return p.ExperienceYears > 0 }},
	{name: "business_name", points: 5, roles: []models.Role{models.RoleEmployer},
		has: func(p *models.Participant) bool { return filled(p.BusinessName) }},
	{name: "business_registered", points: 20, roles: []models.Role{models.RoleEmployer},
		has: func(p *models.Participant) bool { return p.BusinessRegistered }},
}

// requiredFields drive the completeness percentage, independently of the score.
var requiredFields = map[models.Role][]func(p *models.Participant) bool{
	models.RoleWorker: {
		func(p *models.Participant) bool { return filled(p.Name) },
		func(p *models.Participant) bool { return filled(p.Phone) },
		func(p *models.Participant) bool { return filled(p.PhotoURL) },
		func(p *models.Participant) bool { return filled(p.Location) },
		func(p *models.Participant) bool { return countFilled(p.Skills) > 0 },
		func(p *models.Participant) bool { return p.ExperienceYears > 0 },
		func(p *models.Participant) bool { return countFilled(p.Languages) > 0 },
	},
	models.RoleEmployer: {
		func(p *models.Participant) bool { return filled(p.Name) },
		func(p *models.Participant) bool { return filled(p.Phone) },
		func(p *models.Participant) bool { return filled(p.Email) },
		func(p *models.Participant) bool { return filled(p.PhotoURL) },
		func(p *models.Participant) bool { return filled(p.Location) },
		func(p *models.Participant) bool { return filled(p.BusinessName) },
	},
}

// AttributeScore is the baseline plus every applicable contribution, clamped to [0,100].
func AttributeScore(p *models.Participant) int {
	score := Baseline
	for _, c := range contributions {
		if !appliesTo(c.roles, p.Role) {
			continue
		}
		if c.has(p) {
			score += c.points
		}
	}
	return clamp(score)
}

// CompletenessPct is round(100 * filled required / total required).
func CompletenessPct(p *models.Participant) int {
	fields := requiredFields[p.Role]
	if len(fields) == 0 {
		return 0
	}
	n := 0
	for _, f := range fields {
		if f(p) {
			n++
		}
	}
	return roundDiv(100*n, len(fields))
}

// ApplyRating folds one new rating r into a score s that already reflects n ratings.
//
// The first rating is averaged with the attribute score as an equal partner; later ones
// use the weighted running mean. Both round half up.
func ApplyRating(s, n, r int) int {
	if n <= 0 {
		return clamp(roundDiv(s+r, 2))
	}
	return clamp(roundDiv(s*n+r, n+1))
}

// Compute returns the participant's reputation from its profile and its ratings in the
// order they were accepted.
func Compute(p *models.Participant, ratings []int) models.Reputation {
	score := AttributeScore(p)
	for i, r := range ratings {
		score = ApplyRating(score, i, r)
	}
	return models.Reputation{
		Score:           score,
		RatingsCount:    len(ratings),
		CompletenessPct: CompletenessPct(p),
	}
}

// Scores extracts rating values in order.
func Scores(ratings []*models.Rating) []int {
	out := make([]int, len(ratings))
	for i, r := range ratings {
		out[i] = r.Score
	}
	return out
}

// roundDiv is round-half-up of a/b for non-negative a and positive b.
func roundDiv(a, b int) int {
	return (2*a + b) / (2 * b)
}

func clamp(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

func appliesTo(roles []models.Role, role models.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func filled(s string) bool { return strings.TrimSpace(s) != "" }

func countFilled(in []string) int {
	n := 0
	for _, s := range in {
		if filled(s) {
			n++
		}
	}
	return n
}
