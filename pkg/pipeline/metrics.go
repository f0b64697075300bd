package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for submissions_total
const (
	OutcomeAccepted     = "accepted"
	OutcomeStructural   = "structural"
	OutcomeVerification = "verification"
	OutcomeUnsupported  = "unsupported"
)

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	submissions   *prometheus.CounterVec
	verifyLatency *prometheus.HistogramVec
	storeErrors   prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sigbook",
				Subsystem: "pipeline",
				Name:      "submissions_total",
				Help:      "Submissions processed, by outcome",
			},
			[]string{"outcome"},
		),
		verifyLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sigbook",
				Subsystem: "pipeline",
				Name:      "verify_duration_seconds",
				Help:      "Signature verification latency in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"platform"},
		),
		storeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sigbook",
				Subsystem: "pipeline",
				Name:      "store_errors_total",
				Help:      "Store writes that failed",
			},
		),
	}
}
