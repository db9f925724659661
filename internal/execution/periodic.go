package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"

	"github.com/sindh/backend/internal/ledger"
	"github.com/sindh/backend/internal/metrics"
)

const sweepBatch = 200

// CascadeSweepArgs triggers a scan for decline cascades that never completed.
type CascadeSweepArgs struct{}

func (CascadeSweepArgs) Kind() string { return "cascade_sweep" }

func (CascadeSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 3, UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

// Sweeper is implemented by services.Lifecycle.
type Sweeper interface {
	SweepCascades(ctx context.Context, limit int) (int, error)
}

type CascadeSweepWorker struct {
	river.WorkerDefaults[CascadeSweepArgs]
	sweeper Sweeper
	logger  *slog.Logger
}

func NewCascadeSweepWorker(s Sweeper, logger *slog.Logger) *CascadeSweepWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CascadeSweepWorker{sweeper: s, logger: logger}
}

func (w *CascadeSweepWorker) Work(ctx context.Context, _ *river.Job[CascadeSweepArgs]) error {
	n, err := w.sweeper.SweepCascades(ctx, sweepBatch)
	if err != nil {
		return fmt.Errorf("cascade sweep: %w", err)
	}
	if n > 0 {
		w.logger.Warn("cascade sweep declined stale applications", "declined", n)
	}
	return nil
}

// LedgerAuditArgs triggers a full replay of every wallet.
type LedgerAuditArgs struct{}

func (LedgerAuditArgs) Kind() string { return "ledger_audit" }

func (LedgerAuditArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1, UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

type LedgerAuditWorker struct {
	river.WorkerDefaults[LedgerAuditArgs]
	store  ledger.AuditStore
	logger *slog.Logger
}

func NewLedgerAuditWorker(store ledger.AuditStore, logger *slog.Logger) *LedgerAuditWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerAuditWorker{store: store, logger: logger}
}

// Work reports mismatches through logs and metrics. It does not repair balances; a
// mismatch needs a human.
func (w *LedgerAuditWorker) Work(ctx context.Context, _ *river.Job[LedgerAuditArgs]) error {
	checked, bad, err := ledger.Audit(ctx, w.store)
	if err != nil {
		return fmt.Errorf("ledger audit: %w", err)
	}
	metrics.RecordLedgerAudit(checked, len(bad))
	for _, m := range bad {
		w.logger.Error("ledger mismatch", "wallet_id", m.WalletID, "detail", m.String())
	}
	w.logger.Info("ledger audit completed", "checked", checked, "mismatched", len(bad))
	return nil
}

// PeriodicJobs builds the river schedule from standard five-field cron expressions.
func PeriodicJobs(sweepSpec, auditSpec string) ([]*river.PeriodicJob, error) {
	sweep, err := cron.ParseStandard(sweepSpec)
	if err != nil {
		return nil, fmt.Errorf("parse cascade sweep schedule %q: %w", sweepSpec, err)
	}
	audit, err := cron.ParseStandard(auditSpec)
	if err != nil {
		return nil, fmt.Errorf("parse ledger audit schedule %q: %w", auditSpec, err)
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(sweep, func() (river.JobArgs, *river.InsertOpts) {
			return CascadeSweepArgs{}, nil
		}, &river.PeriodicJobOpts{RunOnStart: true}),
		river.NewPeriodicJob(audit, func() (river.JobArgs, *river.InsertOpts) {
			return LedgerAuditArgs{}, nil
		}, nil),
	}, nil
}
