package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records the payment poller's sweep outcomes.
type ReconcileMetrics struct {
	sweepDuration prometheus.Histogram
	outcomes      *prometheus.CounterVec
}

// NewReconcileMetrics registers the poller metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_reconcile_sweep_duration_seconds",
		Help:    "Duration of one payment reconciliation sweep.",
		Buckets: prometheus.DefBuckets,
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcomes_total",
		Help: "Per-cart outcomes observed while polling pending payments.",
	}, []string{"outcome"})
	reg.MustRegister(sweepDuration, outcomes)
	return &ReconcileMetrics{
		sweepDuration: sweepDuration,
		outcomes:      outcomes,
	}
}

// ObserveSweep records the duration of a full sweep.
func (r *ReconcileMetrics) ObserveSweep(duration time.Duration) {
	if r == nil || r.sweepDuration == nil {
		return
	}
	r.sweepDuration.Observe(duration.Seconds())
}

// IncOutcome counts one per-cart poll outcome (captured, cancelled,
// pending, error).
func (r *ReconcileMetrics) IncOutcome(outcome string) {
	if r == nil || r.outcomes == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	r.outcomes.WithLabelValues(outcome).Inc()
}
