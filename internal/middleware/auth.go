package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/auth"
	"github.com/sindh/backend/internal/models"
)

type contextKey string

const ctxActorKey contextKey = "actor"

// ActorAuth validates the Bearer token and stores the resolved actor in the request
// context. Requests without a valid token never reach next.
func ActorAuth(tokens auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, apperr.KindAuthorization, "missing or malformed Authorization header")
				return
			}
			actor, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, apperr.KindAuthorization, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ActorFromCtx returns the authenticated actor; ok is false outside ActorAuth.
func ActorFromCtx(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(ctxActorKey).(models.Actor)
	return a, ok
}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey, a)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": string(kind), "message": msg},
	})
}
