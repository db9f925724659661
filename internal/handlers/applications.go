package handlers

import "net/http"

// GetApplication handles GET /api/v1/applications/{id}.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
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
	app, err := h.Lifecycle.VisibleApplication(r.Context(), id, actor)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// ConfirmCompletion handles POST /api/v1/applications/{id}/confirm. The flag set follows
// the caller's role.
func (h *Handler) ConfirmCompletion(w http.ResponseWriter, r *http.Request) {
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
	app, err := h.Lifecycle.ConfirmCompletion(r.Context(), id, actor)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
