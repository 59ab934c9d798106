package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResilienceMetrics implements resilience.Observer.
type ResilienceMetrics struct {
	service string

	retries      *prometheus.CounterVec
	retryWait    *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
}

func NewResilienceMetrics(service string, registerer prometheus.Registerer) *ResilienceMetrics {
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Retries scheduled against upstream dependencies, by operation and attempt.",
		},
		[]string{"service", "operation", "attempt"},
	)
	retryWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retry_wait_seconds",
			Help:      "Backoff applied before each retry.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by target state.",
		},
		[]string{"service", "operation", "to"},
	)

	registerer.MustRegister(retries, retryWait, breakerState, transitions)

	return &ResilienceMetrics{
		service:      service,
		retries:      retries,
		retryWait:    retryWait,
		breakerState: breakerState,
		transitions:  transitions,
	}
}

func (m *ResilienceMetrics) RetryScheduled(operation string, attempt int, wait time.Duration) {
	m.retries.WithLabelValues(m.service, operation, strconv.Itoa(attempt)).Inc()
	m.retryWait.WithLabelValues(m.service, operation).Observe(wait.Seconds())
}

func (m *ResilienceMetrics) BreakerStateChanged(operation, _, to string) {
	m.transitions.WithLabelValues(m.service, operation, to).Inc()
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
