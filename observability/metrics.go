package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erikrakuscek/escrow-ethereum/core/events"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	escrowMetricsOnce sync.Once
	escrowRegistry    *EscrowMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. code is the JSON-RPC
// error code, or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if code != 0 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// EscrowMetrics tracks submitted calls and committed escrow lifecycle events.
type EscrowMetrics struct {
	calls       *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	lifecycle   *prometheus.CounterVec
	open        prometheus.Gauge
}

// Escrow returns the singleton escrow metrics registry.
func Escrow() *EscrowMetrics {
	escrowMetricsOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "node",
				Name:      "calls_total",
				Help:      "Count of submitted calls segmented by call type and outcome.",
			}, []string{"type", "outcome"}),
			callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "escrow",
				Subsystem: "node",
				Name:      "call_duration_seconds",
				Help:      "Time spent applying a call, including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrow",
				Subsystem: "node",
				Name:      "events_total",
				Help:      "Committed events segmented by event type.",
			}, []string{"event"}),
			open: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "escrow",
				Subsystem: "node",
				Name:      "open_escrows",
				Help:      "Escrows that have not ended yet. Seeded from state at startup.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.calls,
			escrowRegistry.callLatency,
			escrowRegistry.lifecycle,
			escrowRegistry.open,
		)
	})
	return escrowRegistry
}

// ObserveCall records one applied call. err is the error that aborted it, if
// any.
func (m *EscrowMetrics) ObserveCall(callType string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	callType = strings.TrimSpace(callType)
	if callType == "" {
		callType = "unknown"
	}
	outcome := "committed"
	if err != nil {
		outcome = "rejected"
	}
	m.calls.WithLabelValues(callType, outcome).Inc()
	m.callLatency.WithLabelValues(callType).Observe(duration.Seconds())
}

// SetOpenEscrows resets the open escrow gauge, typically from a scan of
// persisted state before the node starts accepting calls.
func (m *EscrowMetrics) SetOpenEscrows(n uint64) {
	if m == nil {
		return
	}
	m.open.Set(float64(n))
}

// Emit implements events.Emitter so the metrics can subscribe to committed
// events.
func (m *EscrowMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := evt.EventType()
	m.lifecycle.WithLabelValues(eventType).Inc()
	switch eventType {
	case "escrow.created":
		m.open.Inc()
	case "escrow.committed", "escrow.canceled", "escrow.cancel_approved", "escrow.cancel_declined", "escrow.reclaimed":
		m.open.Dec()
	}
}
