// Package metrics exposes Prometheus instruments for the review engine.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/herbarium-review/internal/model"
)

var (
	// operationsTotal counts engine operations by operation and outcome.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herbarium_operations_total",
		Help: "Review engine operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// operationDuration tracks operation latency including store I/O.
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "herbarium_operation_duration_seconds",
		Help:    "Review engine operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"operation"})

	// transitionsTotal counts accepted workflow transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herbarium_transitions_total",
		Help: "Accepted workflow transitions by action and target state",
	}, []string{"action", "to"})

	// correctionsTotal counts ledger entries by field.
	correctionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herbarium_corrections_total",
		Help: "Corrections appended to the ledger by field",
	}, []string{"field"})

	// exportsTotal counts export events by format.
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herbarium_exports_total",
		Help: "Export events by format",
	}, []string{"format"})

	// validatorCalls counts validator runs by result.
	validatorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herbarium_validator_calls_total",
		Help: "Validator runs by result",
	}, []string{"result"})

	// recordsByState is refreshed by the backlog collector.
	recordsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herbarium_records",
		Help: "Records by workflow state",
	}, []string{"state"})

	// recordsByPriority is refreshed by the backlog collector.
	recordsByPriority = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "herbarium_records_by_priority",
		Help: "Records by review priority",
	}, []string{"priority"})

	modifiedSinceExport = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "herbarium_records_modified_since_export",
		Help: "Exported records changed after their last export",
	})

	meanQuality = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "herbarium_mean_quality_score",
		Help: "Mean quality score across all records",
	})
)

// Outcome labels an operation result by error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := model.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

// Observe records one operation and its latency.
func Observe(operation string, start time.Time, err error) {
	operationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Transition records an accepted workflow transition.
func Transition(action model.Action, to model.State) {
	transitionsTotal.WithLabelValues(string(action), string(to)).Inc()
}

// Correction records a ledger entry.
func Correction(field string) {
	correctionsTotal.WithLabelValues(field).Inc()
}

// Export records an export event.
func Export(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}

// ValidatorCall records a validator run: "verified", "unresolved", "error" or "skipped".
func ValidatorCall(result string) {
	validatorCalls.WithLabelValues(result).Inc()
}

// Backlog publishes population gauges.
func Backlog(byState map[model.State]int, byPriority map[model.Priority]int, modified int, quality float64) {
	for st, n := range byState {
		recordsByState.WithLabelValues(string(st)).Set(float64(n))
	}
	for p, n := range byPriority {
		recordsByPriority.WithLabelValues(string(p)).Set(float64(n))
	}
	modifiedSinceExport.Set(float64(modified))
	meanQuality.Set(quality)
}
