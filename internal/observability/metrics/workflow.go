package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics counts document workflow outcomes. It is registered on the
// registry of the process that drives the workflow (API or worker).
type WorkflowMetrics struct {
	service string

	documentsUploaded *prometheus.CounterVec
	quotedCost        *prometheus.HistogramVec
	paymentsTotal     *prometheus.CounterVec
	analysesTotal     *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

func NewWorkflowMetrics(service string, registerer prometheus.Registerer) *WorkflowMetrics {
	documentsUploaded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "documents_uploaded_total",
			Help:      "Total documents accepted for pricing.",
		},
		[]string{"service"},
	)
	quotedCost := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "quoted_cost_minor_units",
			Help:      "Distribution of quoted analysis cost in minor currency units.",
			Buckets:   []float64{350, 500, 800, 1000, 2000},
		},
		[]string{"service"},
	)
	paymentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations by outcome (paid, failed, duplicate, rejected).",
		},
		[]string{"service", "outcome"},
	)
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "analyses_total",
			Help:      "Analysis runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "analysis_duration_seconds",
			Help:      "Analysis provider call duration in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"service", "outcome"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups for analyzed documents by result.",
		},
		[]string{"service", "result"},
	)

	registerer.MustRegister(documentsUploaded, quotedCost, paymentsTotal, analysesTotal, analysisDuration, cacheLookups)

	return &WorkflowMetrics{
		service:           service,
		documentsUploaded: documentsUploaded,
		quotedCost:        quotedCost,
		paymentsTotal:     paymentsTotal,
		analysesTotal:     analysesTotal,
		analysisDuration:  analysisDuration,
		cacheLookups:      cacheLookups,
	}
}

func (m *WorkflowMetrics) DocumentUploaded(cost int64) {
	m.documentsUploaded.WithLabelValues(m.service).Inc()
	m.quotedCost.WithLabelValues(m.service).Observe(float64(cost))
}

func (m *WorkflowMetrics) PaymentConfirmed(outcome string) {
	m.paymentsTotal.WithLabelValues(m.service, labelOrUnknown(outcome)).Inc()
}

func (m *WorkflowMetrics) AnalysisFinished(outcome string, duration time.Duration) {
	outcome = labelOrUnknown(outcome)
	m.analysesTotal.WithLabelValues(m.service, outcome).Inc()
	if duration > 0 {
		m.analysisDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
	}
}

func (m *WorkflowMetrics) ResultCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(m.service, result).Inc()
}

func labelOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
