package observability

// Queue metrics. Label sets are bounded: provider keys are configured
// counters, actions and statuses are closed enums.

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

var allStatuses = []domain.Status{
	domain.StatusPending,
	domain.StatusReserved,
	domain.StatusInService,
	domain.StatusCompleted,
	domain.StatusExpired,
	domain.StatusWithdrawn,
}

var (
	queueEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_entries",
			Help: "Entries of the current service day by provider and status.",
		},
		[]string{"provider", "status"},
	)

	queueAverage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_average_service_ms",
			Help: "Smoothed per-entry service duration in milliseconds.",
		},
		[]string{"provider"},
	)

	queueTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_transitions_total",
			Help: "Lifecycle transitions by action and result.",
		},
		[]string{"action", "result"},
	)

	queueSweepExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_sweep_expired_total",
			Help: "Entries expired by the no-show sweep.",
		},
	)

	queueNotifyDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_notify_dropped_total",
			Help: "Change notifications dropped by the hub.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(queueEntries, queueAverage, queueTransitions, queueSweepExpired, queueNotifyDropped)
}

// SetQueueDepth publishes the per-status counts of provider. Statuses
// missing from counts are reported as zero.
func SetQueueDepth(provider string, counts map[domain.Status]int64) {
	for _, st := range allStatuses {
		queueEntries.WithLabelValues(provider, string(st)).Set(float64(counts[st]))
	}
}

// SetAverageServiceMs publishes the current estimate of provider.
func SetAverageServiceMs(provider string, ms int64) {
	queueAverage.WithLabelValues(provider).Set(float64(ms))
}

// RecordTransition counts one transition attempt.
func RecordTransition(action, result string) {
	queueTransitions.WithLabelValues(action, result).Inc()
}

// AddSweepExpired counts entries expired by one sweep pass.
func AddSweepExpired(n int) {
	if n > 0 {
		queueSweepExpired.Add(float64(n))
	}
}

// NotifyDropped counts one dropped notification.
func NotifyDropped(kind string) {
	queueNotifyDropped.WithLabelValues(kind).Inc()
}
