package app

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/selection"
	"mealsync/internal/domain/store"
	"mealsync/internal/infra/batching"
	"mealsync/internal/infra/telemetry"
)

// ReconcileResult summarises one sweep.
type ReconcileResult struct {
	ScannedSelections int
	CleanedSelections int // committed repairs
	ErrorCount        int // malformed documents plus repairs that did not commit
	FailedBatchCount  int
	RemovedItems      int
	Warnings          []IntegrityWarning
}

// Sweeper restores "every selected dish is on that day's menu" after the
// fact, for drift the cascade missed: partial failures, crashes, concurrent
// edits. It never notifies users.
type Sweeper struct {
	menus       menu.Repository
	selections  selection.Repository
	writer      store.Writer
	maxBatchOps int
	clock       calendar.Clock
	logger      *logrus.Entry
}

func NewSweeper(
	mr menu.Repository,
	sr selection.Repository,
	w store.Writer,
	maxBatchOps int,
	clock calendar.Clock,
	logger *logrus.Entry,
) *Sweeper {
	return &Sweeper{
		menus:       mr,
		selections:  sr,
		writer:      w,
		maxBatchOps: maxBatchOps,
		clock:       clock,
		logger:      logger,
	}
}

// Reconcile strips every selected dish that is not on its day's menu within
// rng. A day without a menu counts as an empty menu. Running it again on an
// unchanged store performs no writes.
func (s *Sweeper) Reconcile(ctx context.Context, rng calendar.Range) (ReconcileResult, error) {
	started := time.Now()
	var res ReconcileResult

	if err := rng.Validate(); err != nil {
		return res, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "sweeper.reconcile", trace.WithAttributes(
		attribute.String("sweep.range", rng.String()),
	))
	defer span.End()

	log := s.logger.WithField("range", rng.String())

	// Selections first: a dish added to a menu and then selected between the
	// two reads is then already on the menu we compare against.
	selections, err := s.selections.ListRange(ctx, rng)
	if err != nil {
		return res, s.readFailed(span, log, started, readFailure("list selections in "+rng.String(), err))
	}
	menus, err := s.menus.ListRange(ctx, rng)
	if err != nil {
		return res, s.readFailed(span, log, started, readFailure("list menus in "+rng.String(), err))
	}

	available := make(map[civil.Date][]string, len(menus))
	for _, m := range menus {
		available[m.Date] = m.AvailableItems
	}

	now := s.clock.Now()
	var groups [][]store.Op
	var removed []int
	for _, sel := range selections {
		res.ScannedSelections++
		if !sel.Items.Valid {
			w := IntegrityWarning{Key: sel.Key(), Reason: reasonMissingItems}
			log.WithField("selection", w.Key).Warn("Data integrity warning: skipping malformed selection")
			telemetry.RecordIntegrityWarning(telemetry.SourceSweeper)
			res.Warnings = append(res.Warnings, w)
			res.ErrorCount++
			continue
		}
		invalid := distinct(selection.Subtract(sel.Items.Names, available[sel.Date]))
		if len(invalid) == 0 {
			continue
		}
		log.WithFields(logrus.Fields{
			"user_id": sel.UserID,
			"date":    sel.Date.String(),
			"invalid": invalid,
		}).Info("Invariant violation detected, repairing selection")
		groups = append(groups, []store.Op{store.StripSelection{
			UserID: sel.UserID,
			Date:   sel.Date,
			Remove: invalid,
			At:     now,
		}})
		removed = append(removed, len(invalid))
	}
	telemetry.RecordInvariantRepairs(len(groups))

	report := batching.Run(ctx, groups, s.maxBatchOps, s.writer.WriteBatch)

	res.CleanedSelections = report.CommittedGroups
	res.ErrorCount += len(groups) - report.CommittedGroups
	res.FailedBatchCount = report.Failed()
	for _, n := range removed[:report.CommittedGroups] {
		res.RemovedItems += n
	}

	recordBatchReport(telemetry.SourceSweeper, report)
	telemetry.RecordSelectionsCleaned(telemetry.SourceSweeper, res.CleanedSelections)
	span.SetAttributes(
		attribute.Int("sweep.scanned", res.ScannedSelections),
		attribute.Int("sweep.cleaned", res.CleanedSelections),
		attribute.Int("sweep.errors", res.ErrorCount),
	)

	fields := logrus.Fields{
		"scanned":        res.ScannedSelections,
		"cleaned":        res.CleanedSelections,
		"removed_items":  res.RemovedItems,
		"errors":         res.ErrorCount,
		"batches_failed": res.FailedBatchCount,
	}
	if report.Err == nil {
		log.WithFields(fields).Info("Reconciliation finished")
		telemetry.RecordRun(telemetry.SourceSweeper, "ok", started)
		return res, nil
	}

	log.WithFields(fields).WithError(report.Err).Error("Reconciliation aborted on a failed batch")
	span.RecordError(report.Err)
	span.SetStatus(codes.Error, "partial batch failure")
	telemetry.RecordRun(telemetry.SourceSweeper, "partial", started)
	return res, abortError(report)
}

func (s *Sweeper) readFailed(span trace.Span, log *logrus.Entry, started time.Time, err error) error {
	log.WithError(err).Error("Failed to load documents for reconciliation")
	span.RecordError(err)
	span.SetStatus(codes.Error, "read")
	telemetry.RecordRun(telemetry.SourceSweeper, "error", started)
	return err
}
