package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/middleware"
	"github.com/sindh/backend/internal/models"
	"github.com/sindh/backend/internal/repository"
)

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Allowed []string    `json:"allowed,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition, apperr.KindConflict, apperr.KindIncompleteConfirmation, apperr.KindDuplicateRating:
		return http.StatusConflict
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps domain errors to their status and stable kind. Anything else is
// logged and reported as an opaque 500, or 503 for storage faults.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var de *apperr.Error
	if errors.As(err, &de) {
		if de.Kind == apperr.KindServiceUnavailable {
			logger.Error("storage unavailable", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, statusFor(de.Kind), map[string]errorBody{
			"error": {Kind: de.Kind, Message: de.Message, Allowed: de.Allowed},
		})
		return
	}
	if repository.IsUnavailable(err) {
		logger.Error("storage unavailable", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]errorBody{
			"error": {Kind: apperr.KindServiceUnavailable, Message: "storage unavailable"},
		})
		return
	}
	logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]errorBody{
		"error": {Kind: "Internal", Message: "internal error"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// pathID parses the {name} wildcard of the matched route as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func actorFrom(r *http.Request) (models.Actor, error) {
	a, ok := middleware.ActorFromCtx(r.Context())
	if !ok {
		return models.Actor{}, apperr.Authorization("not authenticated")
	}
	return a, nil
}
