/*
scheduler.go - Nightly paid-in-full report scheduler

PURPOSE:
  Runs the paid-in-full report on a cron schedule and records each run so
  the admin dashboard can show when the counts were last taken.

DESIGN:
  - robfig/cron drives the schedule; the cron expression comes from
    configuration (CRON_SPEC_REPORT)
  - One run per calendar date and program year; a rerun on the same date
    replaces the earlier counts (report_runs upsert)
  - A run with no active program logs and skips, it is not an error state

USAGE:
  scheduler := NewReportScheduler(store, handler.Engine, cfg.CronSpecReport, log)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GetReportRuns endpoint
  - store/sqlite/sqlite.go: report_runs table
*/
package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nelp/payment-engine/ledger"
	"github.com/nelp/payment-engine/store/sqlite"
)

// ReportScheduler runs the nightly paid-in-full report.
type ReportScheduler struct {
	Store  *sqlite.Store
	Engine *ledger.Engine
	Spec   string
	Log    *logrus.Logger

	cron *cron.Cron
}

// NewReportScheduler creates a scheduler with the given cron spec.
func NewReportScheduler(store *sqlite.Store, engine *ledger.Engine, spec string, log *logrus.Logger) *ReportScheduler {
	return &ReportScheduler{
		Store:  store,
		Engine: engine,
		Spec:   spec,
		Log:    log,
		cron:   cron.New(),
	}
}

// Start registers the job and begins the schedule.
func (rs *ReportScheduler) Start() error {
	if _, err := rs.cron.AddFunc(rs.Spec, rs.RunNow); err != nil {
		return err
	}
	rs.cron.Start()
	rs.Log.WithField("spec", rs.Spec).Info("report scheduler started")
	return nil
}

// Stop stops the schedule and waits for a running job to finish.
func (rs *ReportScheduler) Stop() {
	ctx := rs.cron.Stop()
	<-ctx.Done()
	rs.Log.Info("report scheduler stopped")
}

// RunNow executes one report run immediately. Exposed for admin use and
// tests; the cron schedule calls the same path.
func (rs *ReportScheduler) RunNow() {
	ctx := context.Background()

	program, err := rs.Store.ActiveProgram(ctx)
	if err != nil {
		rs.Log.WithError(err).Warn("report run skipped: no active program")
		return
	}

	participants, err := rs.Store.Participants(ctx)
	if err != nil {
		rs.Log.WithError(err).Error("report run failed listing participants")
		return
	}

	paidInFull := 0
	for _, p := range participants {
		paid, err := rs.Engine.IsPaidInFull(ctx, p.ID, program.ProgramYear)
		if err != nil {
			rs.Log.WithError(err).WithField("participant_id", p.ID).
				Error("report run failed computing balance")
			return
		}
		if paid {
			paidInFull++
		}
	}

	run := sqlite.ReportRun{
		ID:           uuid.NewString(),
		RunDate:      time.Now().UTC().Format("2006-01-02"),
		ProgramYear:  program.ProgramYear,
		Participants: len(participants),
		PaidInFull:   paidInFull,
		Outstanding:  len(participants) - paidInFull,
	}
	if err := rs.Store.SaveReportRun(ctx, run); err != nil {
		rs.Log.WithError(err).Error("report run failed saving results")
		return
	}

	rs.Log.WithFields(logrus.Fields{
		"run_date":     run.RunDate,
		"program_year": run.ProgramYear,
		"participants": run.Participants,
		"paid_in_full": run.PaidInFull,
	}).Info("paid-in-full report completed")
}
