package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWriteError_StatusByKind(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{apperr.NotFound("job not found"), http.StatusNotFound, "NotFound"},
		{apperr.InvalidTransition("job", "posted", "paid", []string{"applied", "cancelled"}), http.StatusConflict, "InvalidTransition"},
		{apperr.Conflict("busy"), http.StatusConflict, "ConflictError"},
		{&apperr.Error{Kind: apperr.KindIncompleteConfirmation}, http.StatusConflict, "IncompleteConfirmation"},
		{&apperr.Error{Kind: apperr.KindDuplicateRating}, http.StatusConflict, "DuplicateRating"},
		{apperr.InsufficientFunds("short"), http.StatusPaymentRequired, "InsufficientFunds"},
		{apperr.Validation("bad"), http.StatusBadRequest, "ValidationError"},
		{apperr.Authorization("no"), http.StatusForbidden, "AuthorizationError"},
		{apperr.Unavailable(errors.New("down")), http.StatusServiceUnavailable, "ServiceUnavailable"},
		{net.ErrClosed, http.StatusServiceUnavailable, "ServiceUnavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, discard, httptest.NewRequest(http.MethodGet, "/x", nil), tc.err)
		require.Equal(t, tc.status, rec.Code, "%v", tc.err)

		var body struct {
			Error errorBody `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.kind, string(body.Error.Kind))
	}
}

func TestWriteError_AllowedTargets(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperr.InvalidTransition("job", "posted", "paid", models.JobStatusStrings(models.JobStatusPosted.AllowedTargets()))
	writeError(rec, discard, httptest.NewRequest(http.MethodPost, "/x", nil), err)

	var body struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"applied", "cancelled"}, body.Error.Allowed)
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var got error
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, got = pathID(r, "id")
	})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/not-a-uuid", nil))
	assert.ErrorIs(t, got, apperr.ErrValidation)
}
