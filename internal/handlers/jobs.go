package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/services"
)

type postJobRequest struct {
	Title      string `json:"title"`
	BaseAmount int64  `json:"base_amount"`
}

// PostJob handles POST /api/v1/jobs.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req postJobRequest
	if err := h.Validator.decode(r, SchemaPostJob, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	job, err := h.Lifecycle.PostJob(r.Context(), actor, services.PostJobInput{Title: req.Title, BaseAmount: req.BaseAmount})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs: the calling employer's own jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	jobs, err := h.Lifecycle.EmployerJobs(r.Context(), actor)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	job, err := h.Lifecycle.Job(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Apply handles POST /api/v1/jobs/{id}/applications.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	jobID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	app, err := h.Lifecycle.Apply(r.Context(), jobID, actor)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// ListApplications handles GET /api/v1/jobs/{id}/applications.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	jobID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	apps, err := h.Lifecycle.JobApplications(r.Context(), jobID, actor)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// RankApplicants handles GET /api/v1/jobs/{id}/shortlist?by=auto|reputation|experience.
func (h *Handler) RankApplicants(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	jobID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	list, err := h.Shortlist.Rank(r.Context(), jobID, actor, r.URL.Query().Get("by"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": list})
}

type chargesRequest struct {
	Amount int64 `json:"amount"`
}

// AddCharges handles POST /api/v1/jobs/{id}/charges.
func (h *Handler) AddCharges(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	jobID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req chargesRequest
	if err := h.Validator.decode(r, SchemaCharges, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	job, err := h.Lifecycle.AddCharges(r.Context(), jobID, actor, req.Amount)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type transitionRequest struct {
	Target        string  `json:"target"`
	Amount        *int64  `json:"amount"`
	ApplicationID *string `json:"application_id"`
	Note          string  `json:"note"`
}

// JobTransition handles POST /api/v1/jobs/{id}/transitions.
func (h *Handler) JobTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, services.SubjectJob)
}

// ApplicationTransition handles POST /api/v1/applications/{id}/transitions.
func (h *Handler) ApplicationTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, services.SubjectApplication)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, subject string) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req transitionRequest
	if err := h.Validator.decode(r, SchemaTransition, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	treq := services.TransitionRequest{
		SubjectType: subject,
		SubjectID:   id,
		Target:      req.Target,
		Actor:       actor,
		Amount:      req.Amount,
		Note:        req.Note,
	}
	if req.ApplicationID != nil {
		appID, err := uuid.Parse(*req.ApplicationID)
		if err != nil {
			writeError(w, h.Logger, r, apperr.Validation("invalid application_id"))
			return
		}
		treq.ApplicationID = &appID
	}
	res, err := h.Lifecycle.RequestTransition(r.Context(), treq)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
