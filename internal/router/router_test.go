package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/auth"
	"github.com/sindh/backend/internal/handlers"
	"github.com/sindh/backend/internal/middleware"
	"github.com/sindh/backend/internal/models"
	"github.com/sindh/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeLifecycle struct {
	lastTransition services.TransitionRequest
	lastCharges    int64
	err            error
}

func (f *fakeLifecycle) PostJob(_ context.Context, actor models.Actor, in services.PostJobInput) (*models.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Job{ID: uuid.New(), EmployerID: actor.ParticipantID, Title: in.Title, BaseAmount: in.BaseAmount,
		TotalPayment: in.BaseAmount, Status: models.JobStatusPosted}, nil
}

func (f *fakeLifecycle) Apply(_ context.Context, jobID uuid.UUID, actor models.Actor) (*models.JobApplication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.JobApplication{ID: uuid.New(), JobID: jobID, WorkerID: actor.ParticipantID, Status: models.ApplicationStatusApplied}, nil
}

func (f *fakeLifecycle) RequestTransition(_ context.Context, req services.TransitionRequest) (*services.TransitionResult, error) {
	f.lastTransition = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.TransitionResult{Job: &models.Job{ID: req.SubjectID, Status: models.JobStatus(req.Target)}}, nil
}

func (f *fakeLifecycle) ConfirmCompletion(_ context.Context, id uuid.UUID, actor models.Actor) (*models.JobApplication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.JobApplication{ID: id, WorkerConfirmedFinish: actor.Role == models.RoleWorker}, nil
}

func (f *fakeLifecycle) AddCharges(_ context.Context, jobID uuid.UUID, _ models.Actor, amount int64) (*models.Job, error) {
	f.lastCharges = amount
	if f.err != nil {
		return nil, f.err
	}
	return &models.Job{ID: jobID, AdditionalCharges: amount}, nil
}

func (f *fakeLifecycle) Job(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Job{ID: id}, nil
}

func (f *fakeLifecycle) EmployerJobs(context.Context, models.Actor) ([]*models.Job, error) {
	return []*models.Job{{ID: uuid.New()}}, f.err
}

func (f *fakeLifecycle) JobApplications(context.Context, uuid.UUID, models.Actor) ([]*models.JobApplication, error) {
	return nil, f.err
}

func (f *fakeLifecycle) VisibleApplication(_ context.Context, id uuid.UUID, _ models.Actor) (*models.JobApplication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.JobApplication{ID: id}, nil
}

type fakeReputation struct {
	lastRating  services.RatingRequest
	lastProfile services.ProfileInput
}

func (f *fakeReputation) SubmitRating(_ context.Context, req services.RatingRequest) (*models.Reputation, error) {
	f.lastRating = req
	if req.Score > 100 {
		return nil, apperr.Validation("score must be between 0 and 100")
	}
	return &models.Reputation{Score: req.Score, RatingsCount: 1}, nil
}

func (f *fakeReputation) SaveProfile(_ context.Context, actor models.Actor, in services.ProfileInput) (*models.Participant, error) {
	f.lastProfile = in
	return &models.Participant{ID: actor.ParticipantID, Role: actor.Role, Name: in.Name}, nil
}

func (f *fakeReputation) Participant(_ context.Context, id uuid.UUID) (*models.Participant, error) {
	return &models.Participant{ID: id}, nil
}

type fakeShortlist struct{ by string }

func (f *fakeShortlist) Rank(_ context.Context, jobID uuid.UUID, _ models.Actor, by string) ([]services.Candidate, error) {
	f.by = by
	if by == "cheapest" {
		return nil, apperr.Validation("unknown ordering %q", by)
	}
	app := &models.JobApplication{ID: uuid.New(), JobID: jobID, Status: models.ApplicationStatusApplied}
	return []services.Candidate{{Application: app, Worker: &models.Participant{ID: uuid.New()}, Score: 0.5}}, nil
}

type fakeWallets struct {
	at        time.Time
	deposited int64
}

func (f *fakeWallets) Deposit(_ context.Context, actor models.Actor, amount int64, _ string) (*models.Wallet, error) {
	if actor.Role != models.RoleEmployer {
		return nil, apperr.Authorization("only employers may top up their wallet")
	}
	f.deposited += amount
	return &models.Wallet{ParticipantID: actor.ParticipantID, Balances: models.Balances{Balance: f.deposited}}, nil
}

func (f *fakeWallets) Wallet(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	return &models.Wallet{ParticipantID: id, Balances: models.Balances{Balance: 1000}}, nil
}

func (f *fakeWallets) Statement(context.Context, uuid.UUID) ([]*models.WalletTransaction, error) {
	return []*models.WalletTransaction{{Type: models.EntryCredit, Amount: 1000}}, nil
}

func (f *fakeWallets) BalanceAsOf(_ context.Context, _ uuid.UUID, at time.Time) (models.Balances, error) {
	f.at = at
	return models.Balances{Balance: 400}, nil
}

type fakeInbox struct{ limit int }

func (f *fakeInbox) Inbox(_ context.Context, _ uuid.UUID, limit int) ([]models.Notification, error) {
	f.limit = limit
	return []models.Notification{{Type: models.NotifyStatusChanged}}, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	t         *testing.T
	handler   http.Handler
	tokens    *auth.TokenService
	lc        *fakeLifecycle
	rep       *fakeReputation
	shortlist *fakeShortlist
	wallets   *fakeWallets
	inbox     *fakeInbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	v, err := handlers.NewValidator()
	require.NoError(t, err)
	hs := &harness{
		t:         t,
		tokens:    auth.NewTokenService("test-secret", "sindh", time.Hour),
		lc:        &fakeLifecycle{},
		rep:       &fakeReputation{},
		shortlist: &fakeShortlist{},
		wallets:   &fakeWallets{},
		inbox:     &fakeInbox{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handlers.New(hs.lc, hs.rep, hs.shortlist, hs.wallets, hs.inbox, v, logger)
	hs.handler = New(h, middleware.ActorAuth(hs.tokens), middleware.NewRateLimiter(0, 1).Middleware)
	return hs
}

func (hs *harness) do(method, path string, actor *models.Actor, body string) *httptest.ResponseRecorder {
	hs.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if actor != nil {
		tok, err := hs.tokens.Issue(*actor)
		require.NoError(hs.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	hs.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "error body: %v", body)
	return e["kind"].(string)
}

func actor(role models.Role) *models.Actor {
	return &models.Actor{ParticipantID: uuid.New(), Role: role}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRoutesRequireToken(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/api/v1/wallets/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthorizationError", errorKind(t, rec))
}

func TestPostJob(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodPost, "/api/v1/jobs", actor(models.RoleEmployer), `{"title":"Paint fence","base_amount":1200}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Paint fence", body["title"])
	assert.Equal(t, "posted", body["status"])

	rec = hs.do(http.MethodPost, "/api/v1/jobs", actor(models.RoleEmployer), `{"title":"Paint fence","base_amount":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", errorKind(t, rec))
}

func TestJobTransitionPassesRequest(t *testing.T) {
	hs := newHarness(t)
	employer := actor(models.RoleEmployer)
	jobID, appID := uuid.New(), uuid.New()

	rec := hs.do(http.MethodPost, "/api/v1/jobs/"+jobID.String()+"/transitions", employer,
		`{"target":"accepted","application_id":"`+appID.String()+`","note":"hired"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := hs.lc.lastTransition
	assert.Equal(t, services.SubjectJob, got.SubjectType)
	assert.Equal(t, jobID, got.SubjectID)
	assert.Equal(t, "accepted", got.Target)
	assert.Equal(t, *employer, got.Actor)
	require.NotNil(t, got.ApplicationID)
	assert.Equal(t, appID, *got.ApplicationID)
	assert.Nil(t, got.Amount)
	assert.Equal(t, "hired", got.Note)
}

func TestApplicationTransitionWithAmount(t *testing.T) {
	hs := newHarness(t)
	appID := uuid.New()
	rec := hs.do(http.MethodPost, "/api/v1/applications/"+appID.String()+"/transitions", actor(models.RoleEmployer),
		`{"target":"paid","amount":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.SubjectApplication, hs.lc.lastTransition.SubjectType)
	require.NotNil(t, hs.lc.lastTransition.Amount)
	assert.Equal(t, int64(1000), *hs.lc.lastTransition.Amount)
}

func TestTransitionErrorCarriesAllowedTargets(t *testing.T) {
	hs := newHarness(t)
	hs.lc.err = apperr.InvalidTransition("job", "posted", "paid", []string{"applied", "cancelled"})
	rec := hs.do(http.MethodPost, "/api/v1/jobs/"+uuid.NewString()+"/transitions", actor(models.RoleEmployer), `{"target":"paid"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	e := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "InvalidTransition", e["kind"])
	assert.Equal(t, []any{"applied", "cancelled"}, e["allowed"])
}

func TestBadPathID(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/api/v1/jobs/123", actor(models.RoleWorker), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddChargesValidated(t *testing.T) {
	hs := newHarness(t)
	path := "/api/v1/jobs/" + uuid.NewString() + "/charges"
	rec := hs.do(http.MethodPost, path, actor(models.RoleEmployer), `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodPost, path, actor(models.RoleEmployer), `{"amount":250}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(250), hs.lc.lastCharges)
}

func TestApplyAndConfirm(t *testing.T) {
	hs := newHarness(t)
	worker := actor(models.RoleWorker)
	rec := hs.do(http.MethodPost, "/api/v1/jobs/"+uuid.NewString()+"/applications", worker, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "applied", decode(t, rec)["status"])

	rec = hs.do(http.MethodPost, "/api/v1/applications/"+uuid.NewString()+"/confirm", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["worker_confirmed_finish"])
}

func TestSubmitRating(t *testing.T) {
	hs := newHarness(t)
	employer := actor(models.RoleEmployer)
	jobID, subject := uuid.New(), uuid.New()
	body := `{"job_id":"` + jobID.String() + `","subject_id":"` + subject.String() + `","score":80,"comment":"on time"}`

	rec := hs.do(http.MethodPost, "/api/v1/ratings", employer, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, jobID, hs.rep.lastRating.JobID)
	assert.Equal(t, subject, hs.rep.lastRating.SubjectID)
	assert.Equal(t, *employer, hs.rep.lastRating.Rater)
	rep := decode(t, rec)["reputation"].(map[string]any)
	assert.Equal(t, 80.0, rep["score"])

	body = strings.Replace(body, `"score":80`, `"score":101`, 1)
	rec = hs.do(http.MethodPost, "/api/v1/ratings", employer, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveProfile(t *testing.T) {
	hs := newHarness(t)
	worker := actor(models.RoleWorker)
	rec := hs.do(http.MethodPut, "/api/v1/participants/me", worker,
		`{"name":"Asha","skills":["plumbing","tiling"],"languages":["hi"],"experience_years":6,"phone_verified":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Asha", hs.rep.lastProfile.Name)
	assert.Equal(t, []string{"plumbing", "tiling"}, hs.rep.lastProfile.Skills)
	assert.Equal(t, 6, hs.rep.lastProfile.ExperienceYears)
	assert.True(t, hs.rep.lastProfile.PhoneVerified)

	rec = hs.do(http.MethodGet, "/api/v1/participants/me", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, worker.ParticipantID.String(), decode(t, rec)["id"])
}

func TestWalletRoutes(t *testing.T) {
	hs := newHarness(t)
	worker := actor(models.RoleWorker)

	rec := hs.do(http.MethodGet, "/api/v1/wallets/me", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000.0, decode(t, rec)["balance"])

	rec = hs.do(http.MethodGet, "/api/v1/wallets/me/transactions", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["transactions"], 1)

	rec = hs.do(http.MethodGet, "/api/v1/wallets/me/balance?at=2026-03-01T10:00:00Z", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), hs.wallets.at.UTC())

	rec = hs.do(http.MethodGet, "/api/v1/wallets/me/balance?at=yesterday", worker, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeposit(t *testing.T) {
	hs := newHarness(t)
	employer := actor(models.RoleEmployer)

	rec := hs.do(http.MethodPost, "/api/v1/wallets/me/deposits", employer, `{"amount":1500,"reference":"upi-771"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1500.0, decode(t, rec)["balance"])

	rec = hs.do(http.MethodPost, "/api/v1/wallets/me/deposits", employer, `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = hs.do(http.MethodPost, "/api/v1/wallets/me/deposits", employer, `{"amount":5,"note":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodPost, "/api/v1/wallets/me/deposits", actor(models.RoleWorker), `{"amount":10}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, int64(1500), hs.wallets.deposited)
}

func TestNotifications(t *testing.T) {
	hs := newHarness(t)
	worker := actor(models.RoleWorker)
	rec := hs.do(http.MethodGet, "/api/v1/notifications?limit=5", worker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hs.inbox.limit)

	rec = hs.do(http.MethodGet, "/api/v1/notifications?limit=0", worker, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRankApplicants(t *testing.T) {
	hs := newHarness(t)
	employer := actor(models.RoleEmployer)
	rec := hs.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/shortlist?by=experience", employer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "experience", hs.shortlist.by)
	assert.Len(t, decode(t, rec)["candidates"], 1)

	rec = hs.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/shortlist?by=cheapest", employer, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteRoutesAreRateLimited(t *testing.T) {
	v, err := handlers.NewValidator()
	require.NoError(t, err)
	tokens := auth.NewTokenService("s", "", time.Hour)
	h := handlers.New(&fakeLifecycle{}, &fakeReputation{}, &fakeShortlist{}, &fakeWallets{}, &fakeInbox{}, v, nil)
	mux := New(h, middleware.ActorAuth(tokens), middleware.NewRateLimiter(0.001, 1).Middleware)

	employer := models.Actor{ParticipantID: uuid.New(), Role: models.RoleEmployer}
	tok, err := tokens.Issue(employer)
	require.NoError(t, err)
	send := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/jobs", `{"title":"a","base_amount":1}`))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/api/v1/jobs", `{"title":"b","base_amount":1}`))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/wallets/me", ""), "reads are not limited")
}
