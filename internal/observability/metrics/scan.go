package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics records pipeline measurements. It satisfies ports.ScanObserver.
type ScanMetrics struct {
	service string

	scansTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	schemaDrift   *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func NewScanMetrics(service string, registerer prometheus.Registerer) *ScanMetrics {
	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idscan",
			Subsystem: "scan",
			Name:      "total",
			Help:      "Total scans by extraction strategy and outcome.",
		},
		[]string{"service", "strategy", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "idscan",
			Subsystem: "scan",
			Name:      "stage_duration_seconds",
			Help:      "Duration of the ocr and extract stages in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"service", "stage"},
	)
	schemaDrift := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idscan",
			Subsystem: "model",
			Name:      "reply_schema_drift_total",
			Help:      "Model replies that parsed as JSON but did not match the reply schema.",
		},
		[]string{"service", "strategy"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "idscan",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of an operation is open.",
		},
		[]string{"service", "operation"},
	)

	if registerer != nil {
		registerer.MustRegister(scansTotal, stageDuration, schemaDrift, breakerState)
	}

	return &ScanMetrics{
		service:       service,
		scansTotal:    scansTotal,
		stageDuration: stageDuration,
		schemaDrift:   schemaDrift,
		breakerState:  breakerState,
	}
}

func (m *ScanMetrics) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(m.service, stage).Observe(duration.Seconds())
}

func (m *ScanMetrics) ObserveScan(strategy, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.scansTotal.WithLabelValues(m.service, strategy, outcome).Inc()
}

func (m *ScanMetrics) ObserveSchemaDrift(strategy string) {
	m.schemaDrift.WithLabelValues(m.service, strategy).Inc()
}

// ObserveBreakerState matches resilience.Policy.OnStateChange.
func (m *ScanMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	if state == "open" {
		value = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
