// Package observability exposes the streaming subsystem's Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/hackrf-stream/internal/iqstream"
	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Stream   *metrics.StreamMetrics
	Transfer *metrics.TransferMetrics
	Recorder *metrics.RecorderMetrics
	HTTP     *metrics.HTTPMetrics

	pool *iqstream.Pool
}

// NewMetrics creates a new instance of Metrics on a private registry.
// Pool statistics are sampled from pool on every scrape; nil selects the shared pool.
func NewMetrics(pool *iqstream.Pool) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}

	streamMetrics, err := metrics.NewStreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream metrics: %w", err)
	}

	transferMetrics, err := metrics.NewTransferMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer metrics: %w", err)
	}

	recorderMetrics, err := metrics.NewRecorderMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	if pool == nil {
		pool = iqstream.Shared()
	}

	return &Metrics{
		registry: registry,
		Stream:   streamMetrics,
		Transfer: transferMetrics,
		Recorder: recorderMetrics,
		HTTP:     httpMetrics,
		pool:     pool,
	}, nil
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Stream.ObservePool(m.pool.Stats())
		h.ServeHTTP(w, r)
	})
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

// promErrorLogger routes promhttp errors into the module logger
type promErrorLogger struct{}

func (promErrorLogger) Println(v ...any) {
	log.Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
