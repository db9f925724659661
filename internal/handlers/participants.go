package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/services"
)

type profileRequest struct {
	Name               string   `json:"name"`
	Phone              string   `json:"phone"`
	PhoneVerified      bool     `json:"phone_verified"`
	Email              string   `json:"email"`
	EmailVerified      bool     `json:"email_verified"`
	IdentityVerified   bool     `json:"identity_verified"`
	PhotoURL           string   `json:"photo_url"`
	Location           string   `json:"location"`
	Skills             []string `json:"skills"`
	ExperienceYears    int      `json:"experience_years"`
	Languages          []string `json:"languages"`
	BusinessName       string   `json:"business_name"`
	BusinessRegistered bool     `json:"business_registered"`
	BankLinked         bool     `json:"bank_linked"`
}

// SaveProfile handles PUT /api/v1/participants/me. The body replaces the whole profile.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req profileRequest
	if err := h.Validator.decode(r, SchemaProfile, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	p, err := h.Reputation.SaveProfile(r.Context(), actor, services.ProfileInput(req))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetMe handles GET /api/v1/participants/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	h.writeParticipant(w, r, actor.ParticipantID)
}

// GetParticipant handles GET /api/v1/participants/{id}.
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	h.writeParticipant(w, r, id)
}

func (h *Handler) writeParticipant(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := h.Reputation.Participant(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type ratingRequest struct {
	JobID     uuid.UUID `json:"job_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
}

// SubmitRating handles POST /api/v1/ratings and returns the subject's new reputation.
func (h *Handler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req ratingRequest
	if err := h.Validator.decode(r, SchemaRating, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	rep, err := h.Reputation.SubmitRating(r.Context(), services.RatingRequest{
		SubjectID: req.SubjectID,
		Rater:     actor,
		JobID:     req.JobID,
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"subject_id": req.SubjectID, "reputation": rep})
}
