package route

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zen-systems/agentgate/pkg/registry"
)

// Metrics holds the process-wide routing counters. These are the only
// state shared across concurrent requests in this package; scalars use
// atomics and the maps sit behind a mutex. A Prometheus registerer can
// mirror every increment for scraping; the in-process counters stay
// the source of truth either way.
type Metrics struct {
	totalRequests atomic.Int64
	fallbackCount atomic.Int64

	mu         sync.Mutex
	byCategory map[registry.TaskCategory]int64
	byModel    map[string]int64
	errors     map[string]int64

	promTotal    prometheus.Counter
	promFallback prometheus.Counter
	promCategory *prometheus.CounterVec
	promModel    *prometheus.CounterVec
	promErrors   *prometheus.CounterVec
}

// NewMetrics creates unmirrored in-process counters.
func NewMetrics() *Metrics {
	return &Metrics{
		byCategory: make(map[registry.TaskCategory]int64),
		byModel:    make(map[string]int64),
		errors:     make(map[string]int64),
	}
}

// NewMetricsWithRegistry creates counters mirrored into Prometheus.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := NewMetrics()
	factory := promauto.With(reg)
	m.promTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "agentgate", Subsystem: "router",
		Name: "requests_total", Help: "Total routed requests",
	})
	m.promFallback = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "agentgate", Subsystem: "router",
		Name: "fallbacks_total", Help: "Fallback-chain advancements",
	})
	m.promCategory = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate", Subsystem: "router",
		Name: "requests_by_category_total", Help: "Requests per task category",
	}, []string{"category"})
	m.promModel = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate", Subsystem: "router",
		Name: "model_used_total", Help: "Successful calls per model",
	}, []string{"model"})
	m.promErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate", Subsystem: "router",
		Name: "model_errors_total", Help: "Failed calls per model",
	}, []string{"model"})
	return m
}

// RecordRequest counts one inbound routed request.
func (m *Metrics) RecordRequest(category registry.TaskCategory) {
	m.totalRequests.Add(1)
	m.mu.Lock()
	m.byCategory[category]++
	m.mu.Unlock()
	if m.promTotal != nil {
		m.promTotal.Inc()
		m.promCategory.WithLabelValues(string(category)).Inc()
	}
}

// RecordFallback counts one chain advancement.
func (m *Metrics) RecordFallback() {
	m.fallbackCount.Add(1)
	if m.promFallback != nil {
		m.promFallback.Inc()
	}
}

// RecordModelUsed counts one successful call for a model.
func (m *Metrics) RecordModelUsed(modelID string) {
	m.mu.Lock()
	m.byModel[modelID]++
	m.mu.Unlock()
	if m.promModel != nil {
		m.promModel.WithLabelValues(modelID).Inc()
	}
}

// RecordError counts one failed call for a model.
func (m *Metrics) RecordError(modelID string) {
	m.mu.Lock()
	m.errors[modelID]++
	m.mu.Unlock()
	if m.promErrors != nil {
		m.promErrors.WithLabelValues(modelID).Inc()
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests int64
	FallbackCount int64
	ByCategory    map[registry.TaskCategory]int64
	ByModel       map[string]int64
	Errors        map[string]int64
}

// Snapshot copies the counters for reporting.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		TotalRequests: m.totalRequests.Load(),
		FallbackCount: m.fallbackCount.Load(),
		ByCategory:    make(map[registry.TaskCategory]int64),
		ByModel:       make(map[string]int64),
		Errors:        make(map[string]int64),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.byCategory {
		snap.ByCategory[k] = v
	}
	for k, v := range m.byModel {
		snap.ByModel[k] = v
	}
	for k, v := range m.errors {
		snap.Errors[k] = v
	}
	return snap
}
