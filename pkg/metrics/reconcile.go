package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records outcomes of webhook reconciliation runs.
type ReconcileMetrics struct {
	duration *prometheus.HistogramVec
	settled  prometheus.Counter
	skipped  *prometheus.CounterVec
	failed   *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_duration_seconds",
		Help:    "Duration of payment reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_groups_settled",
		Help: "Order groups transitioned to paid.",
	})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_groups_skipped",
		Help: "Order groups skipped during reconciliation.",
	}, []string{"reason"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_failures",
		Help: "Reconciliation runs that returned an error.",
	}, []string{"code"})
	reg.MustRegister(duration, settled, skipped, failed)
	return &ReconcileMetrics{
		duration: duration,
		settled:  settled,
		skipped:  skipped,
		failed:   failed,
	}
}

// ObserveDuration records a run's duration labeled by outcome.
func (m *ReconcileMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncSettled counts one group transitioned to paid.
func (m *ReconcileMetrics) IncSettled() {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.Inc()
}

// IncSkipped counts one group skipped, labeled by reason.
func (m *ReconcileMetrics) IncSkipped(reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncFailure counts one failed run, labeled by error code.
func (m *ReconcileMetrics) IncFailure(code string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(code)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
