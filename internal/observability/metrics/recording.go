package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RecorderMetrics tracks recordings. It implements recorder.Observer.
type RecorderMetrics struct {
	registry *prometheus.Registry

	sessionsTotal  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	bytesWritten   prometheus.Counter
	errorsTotal    *prometheus.CounterVec
}

// NewRecorderMetrics creates and registers recorder metrics
func NewRecorderMetrics(registry *prometheus.Registry) (*RecorderMetrics, error) {
	m := &RecorderMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *RecorderMetrics) initMetrics() {
	m.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorder_sessions_total",
			Help: "Total number of recordings started",
		},
		[]string{"format"},
	)

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_active_sessions",
		Help: "Recordings currently running",
	})

	m.bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_bytes_written_total",
		Help: "Total sample bytes accepted by recording sinks",
	})

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorder_errors_total",
			Help: "Total number of recording failures",
		},
		[]string{"operation"},
	)
}

func (m *RecorderMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsTotal,
		m.activeSessions,
		m.bytesWritten,
		m.errorsTotal,
	}
}

// Describe implements the Collector interface
func (m *RecorderMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *RecorderMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordingStarted counts a new recording
func (m *RecorderMetrics) RecordingStarted(format string) {
	m.sessionsTotal.WithLabelValues(format).Inc()
	m.activeSessions.Inc()
}

// BytesWritten adds bytes accepted by a sink
func (m *RecorderMetrics) BytesWritten(n int) {
	m.bytesWritten.Add(float64(n))
}

// RecordingFailed counts a failure; open failures never reach RecordingStopped
func (m *RecorderMetrics) RecordingFailed(operation string) {
	m.errorsTotal.WithLabelValues(operation).Inc()
}

// RecordingStopped marks a recording as ended
func (m *RecorderMetrics) RecordingStopped() {
	m.activeSessions.Dec()
}
