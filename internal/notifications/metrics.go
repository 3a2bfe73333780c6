package notifications

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedTotal prometheus.Counter

	// deliveryFailures is labelled by provider name.
	deliveryFailures *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the notification metrics with the default registry.
// Call it once at startup when the metrics endpoint is enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "approtate_notifications_dropped_total",
			Help: "Notification events dropped because the queue was full",
		})
		deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "approtate_notification_failures_total",
			Help: "Notification deliveries a provider rejected or could not complete",
		}, []string{"provider"})
		metricsRegistered = true
	})
}

// The record helpers are no-ops before InitMetrics.

func incrementDroppedCounter() {
	if metricsRegistered {
		droppedTotal.Inc()
	}
}

func incrementFailureCounter(provider string) {
	if metricsRegistered {
		deliveryFailures.WithLabelValues(provider).Inc()
	}
}

// GetDroppedCounter returns the dropped counter, or nil before InitMetrics.
func GetDroppedCounter() prometheus.Counter {
	return droppedTotal
}

// GetFailureCounter returns the delivery failure counter, or nil before
// InitMetrics.
func GetFailureCounter() *prometheus.CounterVec {
	return deliveryFailures
}
