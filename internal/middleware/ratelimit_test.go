package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sindh/backend/internal/models"
)

func TestRateLimiter_PerParticipant(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	a, b := uuid.New(), uuid.New()
	assert.True(t, l.Allow(a))
	assert.True(t, l.Allow(a))
	assert.False(t, l.Allow(a), "burst exhausted")
	assert.True(t, l.Allow(b), "other participants keep their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.Allow(a), "one token refilled after a second")
}

func TestRateLimiter_Sweep(t *testing.T) {
	l := NewRateLimiter(5, 5)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow(uuid.New())
	l.Allow(uuid.New())
	now = now.Add(time.Minute)
	assert.Equal(t, 0, l.Sweep())

	now = now.Add(time.Hour)
	assert.Equal(t, 2, l.Sweep())
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(0.5, 1)
	h := l.Middleware(actorHandler)
	actor := models.Actor{ParticipantID: uuid.New(), Role: models.RoleWorker}

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"kind":"RateLimited"`)
}

func TestRateLimiter_DisabledWhenZero(t *testing.T) {
	l := NewRateLimiter(0, 0)
	id := uuid.New()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(id))
	}
}
