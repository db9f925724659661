package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sindh/backend/internal/apperr"
)

const defaultInboxLimit = 50

// GetWallet handles GET /api/v1/wallets/me.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	wallet, err := h.Wallets.Wallet(r.Context(), actor.ParticipantID)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type depositRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// Deposit handles POST /api/v1/wallets/me/deposits. Employers only.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req depositRequest
	if err := h.Validator.decode(r, SchemaDeposit, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	wallet, err := h.Wallets.Deposit(r.Context(), actor, req.Amount, req.Reference)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

// ListTransactions handles GET /api/v1/wallets/me/transactions, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	list, err := h.Wallets.Statement(r.Context(), actor.ParticipantID)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": list})
}

// BalanceAt handles GET /api/v1/wallets/me/balance?at=RFC3339. Without at it folds
// everything posted so far.
func (h *Handler) BalanceAt(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.Logger, r, apperr.Validation("at must be an RFC3339 timestamp"))
			return
		}
	}
	b, err := h.Wallets.BalanceAsOf(r.Context(), actor.ParticipantID, at)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"at": at.UTC(), "balances": b})
}

// Notifications handles GET /api/v1/notifications?limit=N.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	limit := defaultInboxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, h.Logger, r, apperr.Validation("limit must be a positive integer"))
			return
		}
	}
	list, err := h.Inbox.Inbox(r.Context(), actor.ParticipantID, limit)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}
