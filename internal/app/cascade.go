package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/notification"
	"mealsync/internal/domain/selection"
	"mealsync/internal/domain/store"
	"mealsync/internal/infra/batching"
	"mealsync/internal/infra/telemetry"
)

// Removal describes dishes that were on a day's menu before an edit and are
// gone after it. When the whole menu was deleted, Dishes is the entire prior
// menu. Revision optionally distinguishes a removal that repeats an earlier
// one for the same dishes; it is appended to the notification keys.
type Removal struct {
	Date     civil.Date
	Dishes   []string
	Revision string
}

// CascadeResult summarises one cascade. Counts refer to committed writes
// unless stated otherwise.
type CascadeResult struct {
	AffectedUserCount      int // users whose selection held a removed dish (staged)
	UpdatedSelectionCount  int
	NotifiedUserCount      int // users whose every alert is committed
	NotificationCount      int
	NotificationBatchCount int // committed notification batches
	SelectionBatchCount    int // committed selection batches
	CommittedBatchCount    int
	FailedBatchCount       int // failed batch plus the ones skipped after it
	FirstFailedBatch       int // -1 when every batch committed
	SkippedDocuments       int
	Warnings               []IntegrityWarning
}

// CascadeEngine strips removed dishes from the selections of one day and
// stages a notification for every (user, removed dish) pair.
type CascadeEngine struct {
	selections  selection.Repository
	writer      store.Writer
	maxBatchOps int
	clock       calendar.Clock
	logger      *logrus.Entry
}

func NewCascadeEngine(
	sr selection.Repository,
	w store.Writer,
	maxBatchOps int,
	clock calendar.Clock,
	logger *logrus.Entry,
) *CascadeEngine {
	return &CascadeEngine{
		selections:  sr,
		writer:      w,
		maxBatchOps: maxBatchOps,
		clock:       clock,
		logger:      logger,
	}
}

// OnDishesRemoved cascades the removal of dishes from date's menu. The set is
// trusted as given; the engine does not diff menu versions itself.
func (e *CascadeEngine) OnDishesRemoved(ctx context.Context, date civil.Date, removed []string) (CascadeResult, error) {
	return e.Apply(ctx, Removal{Date: date, Dishes: removed})
}

// Apply runs the cascade: read every selection of the day, compute, then
// commit. Notifications are committed before any selection is stripped, so an
// aborted cascade never strips a dish whose alert is missing. A retry finds
// the dish still selected and stages the same alerts again; their keys are
// deterministic and creation skips existing records, so nothing duplicates.
// A retry after the strips committed finds nothing to do.
func (e *CascadeEngine) Apply(ctx context.Context, r Removal) (CascadeResult, error) {
	started := time.Now()
	res := CascadeResult{FirstFailedBatch: -1}

	if !r.Date.IsValid() {
		return res, fmt.Errorf("%w: %v", ErrInvalidDate, r.Date)
	}
	dishes := distinct(r.Dishes)

	ctx, span := telemetry.Tracer().Start(ctx, "cascade.apply", trace.WithAttributes(
		attribute.String("menu.date", r.Date.String()),
		attribute.StringSlice("menu.removed", dishes),
	))
	defer span.End()

	log := e.logger.WithFields(logrus.Fields{
		"date":    r.Date.String(),
		"removed": dishes,
	})

	if len(dishes) == 0 {
		log.Debug("No dishes removed, nothing to cascade")
		telemetry.RecordRun(telemetry.SourceCascade, "ok", started)
		return res, nil
	}

	selections, err := e.selections.ListByDate(ctx, r.Date)
	if err != nil {
		err = readFailure("list selections for "+r.Date.String(), err)
		log.WithError(err).Error("Failed to load selections for cascade")
		span.RecordError(err)
		span.SetStatus(codes.Error, "list selections")
		telemetry.RecordRun(telemetry.SourceCascade, "error", started)
		return res, err
	}

	now := e.clock.Now()
	var alerts, strips [][]store.Op
	for _, sel := range selections {
		if !sel.Items.Valid {
			w := IntegrityWarning{Key: sel.Key(), Reason: reasonMissingItems}
			log.WithField("selection", w.Key).Warn("Data integrity warning: skipping malformed selection")
			telemetry.RecordIntegrityWarning(telemetry.SourceCascade)
			res.Warnings = append(res.Warnings, w)
			continue
		}
		hit := selection.Overlap(sel.Items.Names, dishes)
		if len(hit) == 0 {
			continue
		}
		userAlerts := make([]store.Op, 0, len(hit))
		for _, dish := range hit {
			userAlerts = append(userAlerts, store.CreateNotification{
				Notification: notification.NewDishRemoved(sel.UserID, r.Date, dish, r.Revision, now),
			})
		}
		alerts = append(alerts, userAlerts)
		strips = append(strips, []store.Op{store.StripSelection{UserID: sel.UserID, Date: r.Date, Remove: hit, At: now}})
	}
	res.SkippedDocuments = len(res.Warnings)
	res.AffectedUserCount = len(strips)

	if len(strips) == 0 {
		log.WithField("scanned", len(selections)).Info("No selection affected by the removal")
		telemetry.RecordRun(telemetry.SourceCascade, "ok", started)
		return res, nil
	}

	alertReport := batching.Run(ctx, alerts, e.maxBatchOps, e.writer.WriteBatch)
	res.NotificationBatchCount = alertReport.Committed
	res.NotifiedUserCount = alertReport.CommittedGroups
	for _, group := range alerts[:alertReport.CommittedGroups] {
		res.NotificationCount += len(group)
	}

	report := alertReport
	if alertReport.Err == nil {
		stripReport := batching.Run(ctx, strips, e.maxBatchOps, e.writer.WriteBatch)
		res.SelectionBatchCount = stripReport.Committed
		res.UpdatedSelectionCount = stripReport.CommittedGroups
		report = mergeReports(alertReport, stripReport)
	} else if planned, err := batching.Partition(strips, e.maxBatchOps); err == nil {
		// The strips never start once an alert batch failed.
		report.Batches += len(planned)
	}

	res.CommittedBatchCount = report.Committed
	res.FailedBatchCount = report.Failed()
	res.FirstFailedBatch = report.FirstFailed

	recordBatchReport(telemetry.SourceCascade, report)
	telemetry.RecordSelectionsCleaned(telemetry.SourceCascade, res.UpdatedSelectionCount)
	telemetry.RecordNotifications(res.NotificationCount)
	span.SetAttributes(
		attribute.Int("cascade.affected", res.AffectedUserCount),
		attribute.Int("cascade.batches.committed", res.CommittedBatchCount),
		attribute.Int("cascade.batches.failed", res.FailedBatchCount),
	)

	fields := logrus.Fields{
		"affected_users":    res.AffectedUserCount,
		"updated":           res.UpdatedSelectionCount,
		"notifications":     res.NotificationCount,
		"batches_committed": res.CommittedBatchCount,
		"batches_failed":    res.FailedBatchCount,
		"skipped":           res.SkippedDocuments,
	}
	if report.Err == nil {
		log.WithFields(fields).Info("Cascade committed")
		telemetry.RecordRun(telemetry.SourceCascade, "ok", started)
		return res, nil
	}

	log.WithFields(fields).WithField("first_failed_batch", report.FirstFailed).WithError(report.Err).
		Error("Cascade partially committed; remaining drift is left to the sweeper")
	span.RecordError(report.Err)
	span.SetStatus(codes.Error, "partial batch failure")
	telemetry.RecordRun(telemetry.SourceCascade, "partial", started)
	return res, abortError(report)
}

// mergeReports joins two sequential runs into one report with continuous
// batch numbering.
func mergeReports(first, second batching.Report) batching.Report {
	merged := batching.Report{
		Batches:         first.Batches + second.Batches,
		Committed:       first.Committed + second.Committed,
		FirstFailed:     first.FirstFailed,
		CommittedGroups: second.CommittedGroups,
		Err:             first.Err,
	}
	if merged.Err == nil && second.Err != nil {
		merged.Err = second.Err
		merged.FirstFailed = first.Batches + second.FirstFailed
	}
	return merged
}

// abortError decides whether a batching abort is surfaced as an error. A
// partial failure is reported through the counts only; an outage that
// prevented any commit, a bad batch limit, or the caller abandoning the call
// is returned.
func abortError(report batching.Report) error {
	switch {
	case report.Err == nil:
		return nil
	case errors.Is(report.Err, batching.ErrInvalidMax):
		return report.Err
	case errors.Is(report.Err, context.Canceled), errors.Is(report.Err, context.DeadlineExceeded):
		return report.Err
	case report.Committed == 0 && errors.Is(report.Err, store.ErrUnavailable):
		return report.Err
	}
	return nil
}

func recordBatchReport(source string, report batching.Report) {
	failed := 0
	if report.FirstFailed >= 0 {
		failed = 1
	}
	telemetry.RecordBatches(source, report.Committed, failed, report.Failed()-failed)
}
