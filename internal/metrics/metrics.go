package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful graph builds.
	OutcomeSuccess = "success"
	// OutcomeError labels failed builds (bad input or upstream issues).
	OutcomeError = "error"
)

var (
	graphsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rootgraph",
			Name:      "graphs_built_total",
			Help:      "Total number of graph builds handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	transformDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rootgraph",
			Name:      "transform_seconds",
			Help:      "Trace-to-graph transform latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	layoutTicks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rootgraph",
			Name:      "layout_ticks",
			Help:      "Simulation ticks executed per layout run.",
			Buckets:   []float64{10, 30, 60, 120, 180, 240, 300, 400},
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rootgraph",
			Name:      "active_sessions",
			Help:      "Number of live graph sessions.",
		},
	)
)

// Register attaches rootgraph collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		graphsBuiltTotal,
		transformDurationSeconds,
		layoutTicks,
		activeSessions,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveBuild records a graph build duration and outcome label.
func ObserveBuild(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	graphsBuiltTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	transformDurationSeconds.Observe(duration.Seconds())
}

// ObserveLayout records how many ticks a finished layout run executed.
func ObserveLayout(ticks int64) {
	if ticks < 0 {
		ticks = 0
	}
	layoutTicks.Observe(float64(ticks))
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
