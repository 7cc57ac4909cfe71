// Package metrics exposes Prometheus counters and histograms for runs, steps
// and healing. Collectors register with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "testpilot"

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_started_total",
		Help:      "Number of test runs started.",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_finished_total",
		Help:      "Number of test runs finished, by outcome (success, failure, error).",
	}, []string{"outcome"})
	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "runs_active",
		Help:      "Runs currently holding a browser session or executing steps.",
	})
	stepResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "step_results_total",
		Help:      "Test case results by kind and status.",
	}, []string{"kind", "status"})
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Wall clock duration of test cases by kind.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"kind"})
	healingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "healing_attempts_total",
		Help:      "Healing attempts by outcome (healed, declined, error, retry_failed).",
	}, []string{"outcome"})
)

// RunStarted records the start of a run.
func RunStarted() {
	runsStarted.Inc()
	runsActive.Inc()
}

// RunFinished records the end of a run. outcome is success, failure or error.
func RunFinished(outcome string) {
	runsActive.Dec()
	runsFinished.WithLabelValues(outcome).Inc()
}

// RecordStep records one test case result.
func RecordStep(kind, status string, d time.Duration) {
	stepResults.WithLabelValues(kind, status).Inc()
	stepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordHealing records one healing attempt.
func RecordHealing(outcome string) {
	healingAttempts.WithLabelValues(outcome).Inc()
}
