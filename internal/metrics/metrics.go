// Package metrics exposes Prometheus instruments for store operations and the
// HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julianstephens/daybook/internal/storage"
)

const namespace = "daybook"

type Metrics struct {
	registry *prometheus.Registry

	storeOps       *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	conflictRetry  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	streamClients  prometheus.Gauge
	streamSnapshot *prometheus.CounterVec
}

// New registers every instrument on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Document store operations by collection, operation and result.",
		}, []string{"collection", "op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_seconds",
			Help:      "Latency of document store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		conflictRetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Read-modify-write retries caused by revision conflicts.",
		}, []string{"collection"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected server-sent-event clients.",
		}),
		streamSnapshot: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_snapshots_total",
			Help:      "Snapshots pushed to stream clients by collection.",
		}, []string{"collection"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.storeOps, m.storeLatency, m.conflictRetry,
		m.httpRequests, m.streamClients, m.streamSnapshot,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result classifies an error for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// ObserveStore records one store operation that started at start.
func (m *Metrics) ObserveStore(collection, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(collection, op, Result(err)).Inc()
	m.storeLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ConflictRetry counts one retry after a revision conflict.
func (m *Metrics) ConflictRetry(collection string) {
	if m == nil {
		return
	}
	m.conflictRetry.WithLabelValues(collection).Inc()
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// StreamOpened and StreamClosed track live SSE clients.
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.streamClients.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.streamClients.Dec()
	}
}

// SnapshotPushed counts one snapshot sent to a stream client.
func (m *Metrics) SnapshotPushed(collection string) {
	if m != nil {
		m.streamSnapshot.WithLabelValues(collection).Inc()
	}
}
