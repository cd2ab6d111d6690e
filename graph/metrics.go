package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for bar compilation.
//
// Metrics exposed (all namespaced with "mind_"):
//
//  1. bars_compiled_total (counter): Bars compiled. Labels: status (ok, error, halted).
//  2. bar_latency_ms (histogram): Wall time of one CompileBar call.
//     Labels: status. Buckets: [0.1, 0.5, 1, 5, 10, 50, 100, 500].
//  3. node_firings_total (counter): Tokens delivered to nodes. Labels: node_type.
//  4. tokens_created_total (counter): Tokens created, immediate or deferred.
//  5. safety_halts_total (counter): Bars stopped early. Labels: reason.
//  6. diagnostics_total (counter): Diagnostics reported. Labels: level.
//  7. active_generators (gauge): Multi-bar generators still running after the last bar.
//  8. pending_joins (gauge): Joins holding a partial arrival set after the last bar.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.New(compiler, emitter, graph.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: the underlying collectors are safe for concurrent use.
type PrometheusMetrics struct {
	activeGenerators prometheus.Gauge
	pendingJoins     prometheus.Gauge

	barLatency *prometheus.HistogramVec

	barsCompiled  *prometheus.CounterVec
	nodeFirings   *prometheus.CounterVec
	tokensCreated prometheus.Counter
	safetyHalts   *prometheus.CounterVec
	diagnostics   *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all engine metrics with registry.
// A nil registry selects prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.activeGenerators = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "mind",
		Name:      "active_generators",
		Help:      "Multi-bar generators still running after the last compiled bar",
	})

	pm.pendingJoins = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "mind",
		Name:      "pending_joins",
		Help:      "Join nodes holding a partial arrival set after the last compiled bar",
	})

	pm.barLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mind",
		Name:      "bar_latency_ms",
		Help:      "Wall time of one bar compilation in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
	}, []string{"status"})

	pm.barsCompiled = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mind",
		Name:      "bars_compiled_total",
		Help:      "Bars compiled, by outcome",
	}, []string{"status"}) // status: ok, error, halted

	pm.nodeFirings = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mind",
		Name:      "node_firings_total",
		Help:      "Tokens delivered to nodes, by node type",
	}, []string{"node_type"})

	pm.tokensCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "mind",
		Name:      "tokens_created_total",
		Help:      "Tokens created by node executors",
	})

	pm.safetyHalts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mind",
		Name:      "safety_halts_total",
		Help:      "Bars stopped early by the safety governor or cancellation",
	}, []string{"reason"}) // reason: node_firings, tokens, cancelled

	pm.diagnostics = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mind",
		Name:      "diagnostics_total",
		Help:      "Diagnostics reported by bar compilation, by level",
	}, []string{"level"})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordBar records one compiled bar and its latency.
func (pm *PrometheusMetrics) RecordBar(status string, latency time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.barsCompiled.WithLabelValues(status).Inc()
	pm.barLatency.WithLabelValues(status).Observe(float64(latency.Microseconds()) / 1000)
}

// AddNodeFirings adds n firings of nodes of type t.
func (pm *PrometheusMetrics) AddNodeFirings(t NodeType, n int) {
	if !pm.isEnabled() || n == 0 {
		return
	}
	pm.nodeFirings.WithLabelValues(string(t)).Add(float64(n))
}

// AddTokensCreated adds n created tokens.
func (pm *PrometheusMetrics) AddTokensCreated(n int) {
	if !pm.isEnabled() || n == 0 {
		return
	}
	pm.tokensCreated.Add(float64(n))
}

// IncrementSafetyHalts records a bar stopped early for reason.
func (pm *PrometheusMetrics) IncrementSafetyHalts(reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.safetyHalts.WithLabelValues(reason).Inc()
}

// IncrementDiagnostics records one diagnostic of the given level.
func (pm *PrometheusMetrics) IncrementDiagnostics(level Level) {
	if !pm.isEnabled() {
		return
	}
	pm.diagnostics.WithLabelValues(string(level)).Inc()
}

// UpdateActiveGenerators sets the active_generators gauge.
func (pm *PrometheusMetrics) UpdateActiveGenerators(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.activeGenerators.Set(float64(n))
}

// UpdatePendingJoins sets the pending_joins gauge.
func (pm *PrometheusMetrics) UpdatePendingJoins(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.pendingJoins.Set(float64(n))
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset clears the gauges. Counters and histograms are cumulative and keep
// their values.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.activeGenerators.Set(0)
	pm.pendingJoins.Set(0)
}

// observe records everything known about one finished bar.
func (pm *PrometheusMetrics) observe(resp Response, latency time.Duration) {
	if pm == nil {
		return
	}
	status := "ok"
	switch {
	case !resp.OK:
		status = "error"
	case resp.Stats.Halted:
		status = "halted"
	}
	pm.RecordBar(status, latency)
	for t, n := range resp.Stats.FiredByType {
		pm.AddNodeFirings(t, n)
	}
	pm.AddTokensCreated(resp.Stats.TokensCreated)
	if resp.Stats.Halted {
		pm.IncrementSafetyHalts(resp.Stats.HaltReason)
	}
	for _, d := range resp.Diagnostics {
		pm.IncrementDiagnostics(d.Level)
	}
	if resp.State != nil {
		pm.UpdateActiveGenerators(len(resp.State.ActiveGenerators))
		pending := 0
		for _, arrived := range resp.State.Joins {
			if len(arrived) > 0 {
				pending++
			}
		}
		pm.UpdatePendingJoins(pending)
	}
}
