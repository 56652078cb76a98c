// Package observability holds the Prometheus collectors for compilation.
//
// Collectors live on a private registry so several Metrics values (one per
// test, one per CLI invocation) never collide on the default registry.
// The CLI is short-lived, so metrics are exported with WriteTextfile for
// the node exporter textfile collector rather than served over HTTP.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metricc"

// Metrics records compilation outcomes. It is safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	// measuresCompiled counts compiled measures.
	// Labels: strategy (pure, derived, contribution, pop, pop_contribution)
	measuresCompiled *prometheus.CounterVec

	// compileFailures counts failed compilations.
	// Labels: code (MISSING_ATTRIBUTE, UNSATISFIABLE_DEPENDENCY, ...)
	compileFailures *prometheus.CounterVec

	// compileDuration measures one visualization's assembly.
	compileDuration prometheus.Histogram

	// definitionsStored counts definitions newly written to the registry.
	definitionsStored prometheus.Counter
}

// NewMetrics creates collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		measuresCompiled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "measures_total",
			Help:      "Measures compiled, by strategy",
		}, []string{"strategy"}),
		compileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "failures_total",
			Help:      "Failed visualization compilations, by error code",
		}, []string{"code"}),
		compileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "duration_seconds",
			Help:      "Time to assemble one execution request",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		definitionsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "definitions_total",
			Help:      "Definitions newly written to the registry",
		}),
	}
}

// MeasureCompiled records one compiled measure.
func (m *Metrics) MeasureCompiled(strategy string) {
	m.measuresCompiled.WithLabelValues(strategy).Inc()
}

// CompileFailed records one failed compilation. An empty code is
// recorded as "UNKNOWN".
func (m *Metrics) CompileFailed(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.compileFailures.WithLabelValues(code).Inc()
}

// CompileFinished records the duration of one assembly.
func (m *Metrics) CompileFinished(d time.Duration) {
	m.compileDuration.Observe(d.Seconds())
}

// DefinitionsStored records n definitions newly written to the registry.
func (m *Metrics) DefinitionsStored(n int) {
	if n > 0 {
		m.definitionsStored.Add(float64(n))
	}
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is written to a temporary name and renamed, so a concurrent
// scrape never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Gatherer()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
