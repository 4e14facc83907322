package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/hackrf-stream/internal/iqstream"
)

// StreamMetrics tracks sample stream activity. It implements iqstream.Observer.
type StreamMetrics struct {
	registry *prometheus.Registry

	appendedBuffers *prometheus.CounterVec
	appendedBytes   *prometheus.CounterVec
	droppedBuffers  *prometheus.CounterVec
	droppedBytes    *prometheus.CounterVec
	discardedBytes  *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	queuedBytes     *prometheus.GaugeVec
	bufferSize      *prometheus.HistogramVec

	poolHits           prometheus.Gauge
	poolMisses         prometheus.Gauge
	poolIdle           prometheus.Gauge
	poolDoubleReleases prometheus.Gauge
}

var _ iqstream.Observer = (*StreamMetrics)(nil)

// NewStreamMetrics creates and registers stream metrics
func NewStreamMetrics(registry *prometheus.Registry) (*StreamMetrics, error) {
	m := &StreamMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *StreamMetrics) initMetrics() {
	m.appendedBuffers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqstream_appended_buffers_total",
			Help: "Total number of buffers appended to a stream",
		},
		[]string{"stream"},
	)

	m.appendedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqstream_appended_bytes_total",
			Help: "Total bytes appended to a stream",
		},
		[]string{"stream"},
	)

	m.droppedBuffers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqstream_dropped_buffers_total",
			Help: "Total number of buffers rejected because the stream was full",
		},
		[]string{"stream"},
	)

	m.droppedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqstream_dropped_bytes_total",
			Help: "Total bytes rejected because the stream was full",
		},
		[]string{"stream"},
	)

	m.discardedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqstream_discarded_bytes_total",
			Help: "Total bytes consumed from a stream",
		},
		[]string{"stream"},
	)

	m.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iqstream_queue_depth_buffers",
			Help: "Buffers currently queued in a stream",
		},
		[]string{"stream"},
	)

	m.queuedBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iqstream_queued_bytes",
			Help: "Unread bytes currently queued in a stream",
		},
		[]string{"stream"},
	)

	m.bufferSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iqstream_buffer_size_bytes",
			Help:    "Size of appended buffers",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount20),
		},
		[]string{"stream"},
	)

	m.poolHits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "iqstream_pool_hits",
		Help: "Acquires served from an idle buffer at the last pool snapshot",
	})
	m.poolMisses = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "iqstream_pool_misses",
		Help: "Acquires that allocated at the last pool snapshot",
	})
	m.poolIdle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "iqstream_pool_idle_buffers",
		Help: "Idle buffers held by the pool",
	})
	m.poolDoubleReleases = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "iqstream_pool_double_releases",
		Help: "Releases of buffers that were already idle",
	})
}

func (m *StreamMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.appendedBuffers,
		m.appendedBytes,
		m.droppedBuffers,
		m.droppedBytes,
		m.discardedBytes,
		m.queueDepth,
		m.queuedBytes,
		m.bufferSize,
		m.poolHits,
		m.poolMisses,
		m.poolIdle,
		m.poolDoubleReleases,
	}
}

// Describe implements the Collector interface
func (m *StreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *StreamMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// BufferAppended records a queued buffer
func (m *StreamMetrics) BufferAppended(stream string, bytes int) {
	m.appendedBuffers.WithLabelValues(stream).Inc()
	m.appendedBytes.WithLabelValues(stream).Add(float64(bytes))
	m.bufferSize.WithLabelValues(stream).Observe(float64(bytes))
}

// BufferDropped records a rejected buffer
func (m *StreamMetrics) BufferDropped(stream string, bytes int) {
	m.droppedBuffers.WithLabelValues(stream).Inc()
	m.droppedBytes.WithLabelValues(stream).Add(float64(bytes))
}

// BytesDiscarded records consumed bytes
func (m *StreamMetrics) BytesDiscarded(stream string, bytes int) {
	m.discardedBytes.WithLabelValues(stream).Add(float64(bytes))
}

// QueueDepth records the current queue size
func (m *StreamMetrics) QueueDepth(stream string, buffers, bytes int) {
	m.queueDepth.WithLabelValues(stream).Set(float64(buffers))
	m.queuedBytes.WithLabelValues(stream).Set(float64(bytes))
}

// ObservePool copies a pool snapshot into the pool gauges
func (m *StreamMetrics) ObservePool(stats iqstream.PoolStats) {
	m.poolHits.Set(float64(stats.Hits))
	m.poolMisses.Set(float64(stats.Misses))
	m.poolIdle.Set(float64(stats.Idle))
	m.poolDoubleReleases.Set(float64(stats.DoubleReleases))
}
