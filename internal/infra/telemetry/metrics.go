package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sources label which path of the core produced a write.
const (
	SourceCascade = "cascade"
	SourceSweeper = "sweeper"
)

var (
	// runsTotal counts cascade and sweeper invocations by outcome
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealsync_runs_total",
		Help: "Cascade and reconcile invocations by source and result",
	}, []string{"source", "result"})

	// runDuration tracks end-to-end latency of one invocation
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mealsync_run_duration_seconds",
		Help:    "Cascade and reconcile duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
	}, []string{"source"})

	selectionsCleaned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealsync_selections_cleaned_total",
		Help: "Selections from which dishes were stripped",
	}, []string{"source"})

	notificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealsync_notifications_staged_total",
		Help: "dish_removed notifications committed (creation is skipped for existing keys)",
	})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealsync_batches_total",
		Help: "Store batches by source and result (committed, failed, aborted)",
	}, []string{"source", "result"})

	integrityWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealsync_integrity_warnings_total",
		Help: "Malformed documents skipped",
	}, []string{"source"})

	invariantRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealsync_invariant_repairs_total",
		Help: "Selections the sweeper found holding dishes outside their menu",
	})
)

// RecordRun records one invocation.
func RecordRun(source, result string, started time.Time) {
	runsTotal.WithLabelValues(source, result).Inc()
	runDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

// RecordBatches records the outcome of a batching run.
func RecordBatches(source string, committed, failed, aborted int) {
	batchesTotal.WithLabelValues(source, "committed").Add(float64(committed))
	batchesTotal.WithLabelValues(source, "failed").Add(float64(failed))
	batchesTotal.WithLabelValues(source, "aborted").Add(float64(aborted))
}

func RecordSelectionsCleaned(source string, n int) {
	selectionsCleaned.WithLabelValues(source).Add(float64(n))
}

func RecordNotifications(n int) {
	notificationsCreated.Add(float64(n))
}

func RecordIntegrityWarning(source string) {
	integrityWarnings.WithLabelValues(source).Inc()
}

func RecordInvariantRepairs(n int) {
	invariantRepairs.Add(float64(n))
}
