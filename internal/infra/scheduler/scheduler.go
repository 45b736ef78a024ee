package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mealsync/internal/app"
	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/telegram"
)

// Reconciler is the sweep the scheduler triggers.
type Reconciler interface {
	Reconcile(ctx context.Context, rng calendar.Range) (app.ReconcileResult, error)
}

// ReconcileScheduler runs an unscoped sweep on a cron schedule and reports
// runs that repaired something, or failed, to the admin chat.
type ReconcileScheduler struct {
	cronEngine  *cron.Cron
	sweeper     Reconciler
	notifier    telegram.Client // optional
	adminChatID int64
	logger      *logrus.Entry
	cronSpec    string
	timeout     time.Duration
	newRunID    func() string
}

func NewReconcileScheduler(
	sweeper Reconciler,
	notifier telegram.Client,
	adminChatID int64,
	logger *logrus.Entry,
	cronSpec string, // e.g. "0 3 * * *" (03:00 daily)
	timeout time.Duration,
	loc *time.Location,
) *ReconcileScheduler {
	return &ReconcileScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		sweeper:     sweeper,
		notifier:    notifier,
		adminChatID: adminChatID,
		logger:      logger,
		cronSpec:    cronSpec,
		timeout:     timeout,
		newRunID:    func() string { return uuid.NewString() },
	}
}

func (s *ReconcileScheduler) Start() error {
	s.logger.WithField("spec", s.cronSpec).Info("Starting reconcile scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for reconciliation.")
		_, _ = s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("could not add reconcile cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.Info("Reconcile scheduler started.")
	return nil
}

// RunOnce performs one unscoped sweep under the configured timeout.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) (app.ReconcileResult, error) {
	runID := s.newRunID()
	log := s.logger.WithField("run_id", runID)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.sweeper.Reconcile(ctx, calendar.All())
	if err != nil {
		log.WithError(err).Error("Scheduled reconciliation failed")
	} else {
		log.WithFields(logrus.Fields{
			"scanned": res.ScannedSelections,
			"cleaned": res.CleanedSelections,
			"errors":  res.ErrorCount,
		}).Info("Scheduled reconciliation finished")
	}

	if s.notifier != nil && s.adminChatID != 0 && (err != nil || res.CleanedSelections > 0 || res.ErrorCount > 0) {
		if sendErr := s.notifier.SendMessage(s.adminChatID, FormatReport(runID, res, err), nil); sendErr != nil {
			log.WithError(sendErr).Warn("Failed to send reconciliation report to admin")
		}
	}
	return res, err
}

// FormatReport renders a sweep outcome for the admin chat.
func FormatReport(runID string, res app.ReconcileResult, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s\n", runID)
	if err != nil {
		fmt.Fprintf(&b, "Failed: %v\n", err)
	}
	fmt.Fprintf(&b, "Scanned: %d\nCleaned: %d\nRemoved dishes: %d\nErrors: %d",
		res.ScannedSelections, res.CleanedSelections, res.RemovedItems, res.ErrorCount)
	if res.FailedBatchCount > 0 {
		fmt.Fprintf(&b, "\nFailed batches: %d", res.FailedBatchCount)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\nMalformed: %s", w.Key)
	}
	return b.String()
}

func (s *ReconcileScheduler) Stop() {
	s.logger.Info("Stopping reconcile scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reconcile scheduler gracefully stopped.")
}
