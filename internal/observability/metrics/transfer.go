package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TransferMetrics tracks hardware callback activity. It implements transfer.Observer.
type TransferMetrics struct {
	registry *prometheus.Registry

	transfersTotal *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	overflowsTotal *prometheus.CounterVec
	hardwareErrors *prometheus.CounterVec
	transferSize   *prometheus.HistogramVec
}

// NewTransferMetrics creates and registers transfer metrics
func NewTransferMetrics(registry *prometheus.Registry) (*TransferMetrics, error) {
	m := &TransferMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TransferMetrics) initMetrics() {
	m.transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackrf_transfers_total",
			Help: "Total number of transfers handled by the callbacks",
		},
		[]string{"direction"},
	)

	m.bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackrf_transfer_bytes_total",
			Help: "Total sample bytes moved by the callbacks",
		},
		[]string{"direction"},
	)

	m.overflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackrf_overflows_total",
			Help: "Total number of transfers dropped because the stream was full",
		},
		[]string{"direction"},
	)

	m.hardwareErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackrf_hardware_errors_total",
			Help: "Total number of failed driver calls",
		},
		[]string{"operation", "status"},
	)

	m.transferSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hackrf_transfer_size_bytes",
			Help:    "Valid bytes per transfer",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount20),
		},
		[]string{"direction"},
	)
}

func (m *TransferMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.transfersTotal,
		m.bytesTotal,
		m.overflowsTotal,
		m.hardwareErrors,
		m.transferSize,
	}
}

// Describe implements the Collector interface
func (m *TransferMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *TransferMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// TransferCompleted records one transfer moved between the device and a stream
func (m *TransferMetrics) TransferCompleted(direction string, bytes int) {
	m.transfersTotal.WithLabelValues(direction).Inc()
	m.bytesTotal.WithLabelValues(direction).Add(float64(bytes))
	m.transferSize.WithLabelValues(direction).Observe(float64(bytes))
}

// Overflow records a dropped transfer
func (m *TransferMetrics) Overflow(direction string, _ int) {
	m.overflowsTotal.WithLabelValues(direction).Inc()
}

// HardwareError records a failed driver call
func (m *TransferMetrics) HardwareError(operation, status string) {
	m.hardwareErrors.WithLabelValues(operation, status).Inc()
}
