// Package metrics exposes rotation runs as Prometheus metrics and serves
// them together with a health endpoint.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/approtate/pkg/rotation"
)

var (
	runsTotal               *prometheus.CounterVec
	stageFailuresTotal      *prometheus.CounterVec
	credentialsCreatedTotal *prometheus.CounterVec
	credentialsPrunedTotal  *prometheus.CounterVec
	lastSuccessTimestamp    *prometheus.GaugeVec
	runDuration             *prometheus.HistogramVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// RunMetrics records finished runs. It implements rotation.Recorder.
type RunMetrics struct {
	status *Status
}

var _ rotation.Recorder = (*RunMetrics)(nil)

// NewRunMetrics creates a RunMetrics that also keeps status current when
// it is not nil. Prometheus metrics are not recorded until InitMetrics has
// been called.
func NewRunMetrics(status *Status) *RunMetrics {
	return &RunMetrics{status: status}
}

// InitMetrics registers all metrics with the default registry.
// This should be called once at startup if the metrics endpoint is enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approtate_runs_total",
				Help: "Total number of rotation runs by outcome",
			},
			[]string{"app_object_id", "outcome"},
		)

		stageFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approtate_stage_failures_total",
				Help: "Total number of rotation runs that stopped at each stage",
			},
			[]string{"app_object_id", "stage"},
		)

		credentialsCreatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approtate_credentials_created_total",
				Help: "Total number of password credentials created",
			},
			[]string{"app_object_id"},
		)

		credentialsPrunedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approtate_credentials_pruned_total",
				Help: "Total number of expired password credentials removed",
			},
			[]string{"app_object_id"},
		)

		lastSuccessTimestamp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "approtate_last_success_timestamp_seconds",
				Help: "Unix time of the last rotation run that completed every stage",
			},
			[]string{"app_object_id"},
		)

		runDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "approtate_run_duration_seconds",
				Help:    "Duration of rotation runs in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"app_object_id"},
		)

		metricsRegistered = true
	})
}

// RecordRun updates every metric from a finished run.
func (m *RunMetrics) RecordRun(result *rotation.Result) {
	if result == nil {
		return
	}
	if m.status != nil {
		m.status.RecordRun(result)
	}
	if !metricsRegistered {
		return
	}

	app := result.AppObjectID
	runsTotal.WithLabelValues(app, string(result.Outcome)).Inc()
	runDuration.WithLabelValues(app).Observe(result.Duration().Seconds())

	if result.FailedStage != "" {
		stageFailuresTotal.WithLabelValues(app, string(result.FailedStage)).Inc()
	}
	if result.Created != nil {
		credentialsCreatedTotal.WithLabelValues(app).Inc()
	}
	if n := len(result.Removed); n > 0 {
		credentialsPrunedTotal.WithLabelValues(app).Add(float64(n))
	}
	if result.Outcome == rotation.OutcomeSucceeded {
		lastSuccessTimestamp.WithLabelValues(app).Set(float64(result.FinishedAt.Unix()))
	}
}

// GetRunsTotal returns the runs counter for testing.
func GetRunsTotal() *prometheus.CounterVec {
	return runsTotal
}

// GetStageFailuresTotal returns the stage failure counter for testing.
func GetStageFailuresTotal() *prometheus.CounterVec {
	return stageFailuresTotal
}

// GetCredentialsCreatedTotal returns the created counter for testing.
func GetCredentialsCreatedTotal() *prometheus.CounterVec {
	return credentialsCreatedTotal
}

// GetCredentialsPrunedTotal returns the pruned counter for testing.
func GetCredentialsPrunedTotal() *prometheus.CounterVec {
	return credentialsPrunedTotal
}

// GetLastSuccessTimestamp returns the last success gauge for testing.
func GetLastSuccessTimestamp() *prometheus.GaugeVec {
	return lastSuccessTimestamp
}

// GetRunDuration returns the duration histogram for testing.
func GetRunDuration() *prometheus.HistogramVec {
	return runDuration
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
