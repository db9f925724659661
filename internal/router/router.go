package router

import (
	"net/http"

	"github.com/sindh/backend/internal/handlers"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// New returns the /api/v1 mux. auth runs on every route; limit only on routes that
// change state.
func New(h *handlers.Handler, auth, limit Middleware) http.Handler {
	mux := http.NewServeMux()
	const base = "/api/v1"

	read := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}
	write := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(limit(fn)))
	}

	write("POST "+base+"/jobs", h.PostJob)
	read("GET "+base+"/jobs", h.ListJobs)
	read("GET "+base+"/jobs/{id}", h.GetJob)
	write("POST "+base+"/jobs/{id}/applications", h.Apply)
	read("GET "+base+"/jobs/{id}/applications", h.ListApplications)
	read("GET "+base+"/jobs/{id}/shortlist", h.RankApplicants)
	write("POST "+base+"/jobs/{id}/transitions", h.JobTransition)
	write("POST "+base+"/jobs/{id}/charges", h.AddCharges)

	read("GET "+base+"/applications/{id}", h.GetApplication)
	write("POST "+base+"/applications/{id}/transitions", h.ApplicationTransition)
	write("POST "+base+"/applications/{id}/confirm", h.ConfirmCompletion)

	write("POST "+base+"/ratings", h.SubmitRating)

	write("PUT "+base+"/participants/me", h.SaveProfile)
	read("GET "+base+"/participants/me", h.GetMe)
	read("GET "+base+"/participants/{id}", h.GetParticipant)

	read("GET "+base+"/wallets/me", h.GetWallet)
	write("POST "+base+"/wallets/me/deposits", h.Deposit)
	read("GET "+base+"/wallets/me/transactions", h.ListTransactions)
	read("GET "+base+"/wallets/me/balance", h.BalanceAt)

	read("GET "+base+"/notifications", h.Notifications)

	return mux
}
