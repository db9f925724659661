package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory store: one struct satisfies every repository interface the services
// use. Transactions are serialized and a rollback restores the snapshot taken
// at Begin, so a failed attempt leaves no trace.
// ---------------------------------------------------------------------------

type memState struct {
	jobs         map[uuid.UUID]models.Job
	apps         map[uuid.UUID]models.JobApplication
	wallets      map[uuid.UUID]models.Wallet
	entries      []models.WalletTransaction
	participants map[uuid.UUID]models.Participant
	ratings      []models.Rating
}

func (s memState) clone() memState {
	c := memState{
		jobs:         make(map[uuid.UUID]models.Job, len(s.jobs)),
		apps:         make(map[uuid.UUID]models.JobApplication, len(s.apps)),
		wallets:      make(map[uuid.UUID]models.Wallet, len(s.wallets)),
		entries:      append([]models.WalletTransaction(nil), s.entries...),
		participants: make(map[uuid.UUID]models.Participant, len(s.participants)),
		ratings:      append([]models.Rating(nil), s.ratings...),
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.apps {
		c.apps[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	return c
}

type memStore struct {
	mu    sync.Mutex
	state memState

	// Fault injection.
	beginErrs         []error
	updateJobConflict int
	declineErr        error
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		jobs:         map[uuid.UUID]models.Job{},
		apps:         map[uuid.UUID]models.JobApplication{},
		wallets:      map[uuid.UUID]models.Wallet{},
		participants: map[uuid.UUID]models.Participant{},
	}}
}

// guard locks the store for calls made outside a transaction. Inside one the
// transaction already holds the lock.
func (m *memStore) guard(tx pgx.Tx) func() {
	if tx != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func cloneHistory(h []models.StatusChange) []models.StatusChange {
	return append([]models.StatusChange(nil), h...)
}

// --- TxBeginner ---

func (m *memStore) Begin(context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	if len(m.beginErrs) > 0 {
		err := m.beginErrs[0]
		m.beginErrs = m.beginErrs[1:]
		m.mu.Unlock()
		return nil, err
	}
	return &memTx{store: m, snapshot: m.state.clone()}, nil
}

// memTx satisfies pgx.Tx; only Commit and Rollback do anything.
type memTx struct {
	store    *memStore
	snapshot memState
	done     bool
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}
func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.state = t.snapshot
	t.store.mu.Unlock()
	return nil
}
func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- Jobs ---

func (m *memStore) CreateJob(_ context.Context, tx pgx.Tx, j *models.Job) error {
	defer m.guard(tx)()
	m.state.jobs[j.ID] = *j
	return nil
}

func (m *memStore) GetJob(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	defer m.guard(tx)()
	j, ok := m.state.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job not found")
	}
	return &j, nil
}

func (m *memStore) UpdateJob(_ context.Context, tx pgx.Tx, j *models.Job) error {
	defer m.guard(tx)()
	if m.updateJobConflict > 0 {
		m.updateJobConflict--
		return apperr.ErrVersionConflict
	}
	cur, ok := m.state.jobs[j.ID]
	if !ok || cur.Version != j.Version {
		return apperr.ErrVersionConflict
	}
	j.Version++
	m.state.jobs[j.ID] = *j
	return nil
}

func (m *memStore) ListByEmployer(_ context.Context, employerID uuid.UUID) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.state.jobs {
		if j.EmployerID == employerID {
			cp := j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// --- Applications ---

func (m *memStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]*models.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobApplication
	for _, a := range m.state.apps {
		if a.JobID == jobID {
			cp := a
			cp.History = cloneHistory(a.History)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (m *memStore) GetApplication(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobApplication, error) {
	defer m.guard(tx)()
	a, ok := m.state.apps[id]
	if !ok {
		return nil, apperr.NotFound("application not found")
	}
	a.History = cloneHistory(a.History)
	return &a, nil
}

func (m *memStore) FindActiveApplication(_ context.Context, tx pgx.Tx, jobID, workerID uuid.UUID) (*models.JobApplication, error) {
	defer m.guard(tx)()
	for _, a := range m.state.apps {
		if a.JobID == jobID && a.WorkerID == workerID && a.Status.IsActive() {
			a.History = cloneHistory(a.History)
			return &a, nil
		}
	}
	return nil, apperr.NotFound("application not found")
}

func (m *memStore) CreateApplication(_ context.Context, tx pgx.Tx, a *models.JobApplication) error {
	defer m.guard(tx)()
	for _, cur := range m.state.apps {
		if cur.JobID == a.JobID && cur.WorkerID == a.WorkerID && cur.Status.IsActive() {
			return apperr.Conflict("worker already has an active application for this job")
		}
	}
	cp := *a
	cp.History = cloneHistory(a.History)
	m.state.apps[a.ID] = cp
	return nil
}

func (m *memStore) UpdateApplication(_ context.Context, tx pgx.Tx, a *models.JobApplication, _ []models.StatusChange) error {
	defer m.guard(tx)()
	cur, ok := m.state.apps[a.ID]
	if !ok || cur.Version != a.Version {
		return apperr.ErrVersionConflict
	}
	a.Version++
	cp := *a
	cp.History = cloneHistory(a.History)
	m.state.apps[a.ID] = cp
	return nil
}

func (m *memStore) CountApplications(_ context.Context, tx pgx.Tx, jobID uuid.UUID) (int, error) {
	defer m.guard(tx)()
	n := 0
	for _, a := range m.state.apps {
		if a.JobID == jobID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) moveApps(match func(models.JobApplication) bool, to models.ApplicationStatus, note string, at time.Time) []models.ApplicationRef {
	var refs []models.ApplicationRef
	for id, a := range m.state.apps {
		if !match(a) {
			continue
		}
		a.History = cloneHistory(a.History)
		a.SetStatus(to, at, note)
		a.Version++
		m.state.apps[id] = a
		refs = append(refs, models.ApplicationRef{ID: a.ID, WorkerID: a.WorkerID})
	}
	return refs
}

func (m *memStore) DeclineApplied(_ context.Context, jobID, winnerID uuid.UUID, note string, at time.Time) ([]models.ApplicationRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.declineErr != nil {
		return nil, m.declineErr
	}
	return m.moveApps(func(a models.JobApplication) bool {
		return a.JobID == jobID && a.ID != winnerID && a.Status == models.ApplicationStatusApplied
	}, models.ApplicationStatusDeclined, note, at), nil
}

func (m *memStore) CancelActive(_ context.Context, tx pgx.Tx, jobID uuid.UUID, note string, at time.Time) ([]models.ApplicationRef, error) {
	defer m.guard(tx)()
	return m.moveApps(func(a models.JobApplication) bool {
		return a.JobID == jobID && !a.Status.IsTerminal()
	}, models.ApplicationStatusCancelled, note, at), nil
}

func (m *memStore) PendingCascades(_ context.Context, limit int) ([]models.PendingCascade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingCascade
	for _, w := range m.state.apps {
		job := m.state.jobs[w.JobID]
		if !job.IsSelected(w.WorkerID) || !w.Status.IsActive() || w.Status == models.ApplicationStatusApplied ||
			w.Status == models.ApplicationStatusAccepted {
			continue
		}
		for _, s := range m.state.apps {
			if s.JobID == w.JobID && s.ID != w.ID && s.Status == models.ApplicationStatusApplied {
				out = append(out, models.PendingCascade{JobID: w.JobID, WinnerID: w.ID})
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Wallets (ledger.Store, PaymentWalletRepo, WalletCreator) ---

func (m *memStore) CreateWallet(_ context.Context, tx pgx.Tx, id uuid.UUID, role models.Role) error {
	defer m.guard(tx)()
	if _, ok := m.state.wallets[id]; !ok {
		m.state.wallets[id] = models.Wallet{ParticipantID: id, Role: role}
	}
	return nil
}

func (m *memStore) GetWallet(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	defer m.guard(nil)()
	return m.wallet(id)
}

func (m *memStore) GetWalletForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Wallet, error) {
	defer m.guard(tx)()
	return m.wallet(id)
}

func (m *memStore) wallet(id uuid.UUID) (*models.Wallet, error) {
	w, ok := m.state.wallets[id]
	if !ok {
		return nil, apperr.NotFound("wallet not found")
	}
	return &w, nil
}

func (m *memStore) UpdateBalances(_ context.Context, tx pgx.Tx, w *models.Wallet) error {
	defer m.guard(tx)()
	cur, ok := m.state.wallets[w.ParticipantID]
	if !ok || cur.Version != w.Version {
		return apperr.ErrVersionConflict
	}
	w.Version++
	m.state.wallets[w.ParticipantID] = *w
	return nil
}

func (m *memStore) AppendTransaction(_ context.Context, tx pgx.Tx, e *models.WalletTransaction) error {
	defer m.guard(tx)()
	m.state.entries = append(m.state.entries, *e)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, id uuid.UUID, until *time.Time) ([]*models.WalletTransaction, error) {
	defer m.guard(nil)()
	var out []*models.WalletTransaction
	for _, e := range m.state.entries {
		if e.WalletID != id || (until != nil && e.CreatedAt.After(*until)) {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	return out, nil
}

// --- Participants and ratings ---

func (m *memStore) GetParticipant(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Participant, error) {
	defer m.guard(tx)()
	p, ok := m.state.participants[id]
	if !ok {
		return nil, apperr.NotFound("participant not found")
	}
	return &p, nil
}

func (m *memStore) CreateParticipant(_ context.Context, tx pgx.Tx, p *models.Participant) error {
	defer m.guard(tx)()
	if _, ok := m.state.participants[p.ID]; ok {
		return apperr.ErrVersionConflict
	}
	m.state.participants[p.ID] = *p
	return nil
}

func (m *memStore) UpdateParticipant(_ context.Context, tx pgx.Tx, p *models.Participant) error {
	defer m.guard(tx)()
	cur, ok := m.state.participants[p.ID]
	if !ok || cur.Version != p.Version {
		return apperr.ErrVersionConflict
	}
	p.Version++
	m.state.participants[p.ID] = *p
	return nil
}

func (m *memStore) CreateRating(_ context.Context, tx pgx.Tx, r *models.Rating) error {
	defer m.guard(tx)()
	for _, cur := range m.state.ratings {
		if cur.JobID == r.JobID && cur.RaterID == r.RaterID && cur.SubjectID == r.SubjectID {
			return apperr.New(apperr.KindDuplicateRating, "job already rated")
		}
	}
	m.state.ratings = append(m.state.ratings, *r)
	return nil
}

func (m *memStore) HasRating(_ context.Context, tx pgx.Tx, jobID, raterID uuid.UUID) (bool, error) {
	defer m.guard(tx)()
	for _, r := range m.state.ratings {
		if r.JobID == jobID && r.RaterID == raterID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListRatings(_ context.Context, tx pgx.Tx, subjectID uuid.UUID) ([]*models.Rating, error) {
	defer m.guard(tx)()
	var out []*models.Rating
	for _, r := range m.state.ratings {
		if r.SubjectID == subjectID {
			cp := r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- inspection helpers ---

func (m *memStore) job(id uuid.UUID) models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.jobs[id]
}

func (m *memStore) app(id uuid.UUID) models.JobApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.apps[id]
}

func (m *memStore) balances(id uuid.UUID) models.Balances {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.wallets[id].Balances
}

func (m *memStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.entries)
}

// --- Notifier ---

type mockNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *mockNotifier) Notify(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *mockNotifier) count(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Type == typ {
			c++
		}
	}
	return c
}
