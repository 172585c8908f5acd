// Package metrics exposes Prometheus instrumentation for analysis runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metrics of the analyzer
type Registry struct {
	RunsTotal        *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	SessionsTotal    *prometheus.CounterVec
	NodeErrorsTotal  prometheus.Counter
	OwnedAddresses   prometheus.Gauge
	Declarations     prometheus.Gauge
	LastRunTimestamp prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	f := promauto.With(reg)

	r.RunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessioncheck_runs_total",
			Help: "Total number of analysis runs by outcome",
		},
		[]string{"status"},
	)
	r.PhaseDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessioncheck_phase_duration_seconds",
			Help:    "Duration of each analysis phase in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"phase"},
	)
	r.SessionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessioncheck_sessions_total",
			Help: "Classified sessions by protocol and primary status",
		},
		[]string{"protocol", "status"},
	)
	r.NodeErrorsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "sessioncheck_node_errors_total",
		Help: "Nodes skipped because their configuration violated a model invariant",
	})
	r.OwnedAddresses = f.NewGauge(prometheus.GaugeOpts{
		Name: "sessioncheck_owned_addresses",
		Help: "Addresses in the ownership index of the last run",
	})
	r.Declarations = f.NewGauge(prometheus.GaugeOpts{
		Name: "sessioncheck_declarations",
		Help: "Session declarations in the catalog of the last run",
	})
	r.LastRunTimestamp = f.NewGauge(prometheus.GaugeOpts{
		Name: "sessioncheck_last_run_timestamp_seconds",
		Help: "Unix time the last run completed",
	})
	return r
}

// Gatherer returns the underlying Prometheus gatherer
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics in text exposition format, for the node
// exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// RecordPhase records the duration of one analysis phase
func (r *Registry) RecordPhase(phase string, d time.Duration) {
	r.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordSession counts one classified session
func (r *Registry) RecordSession(protocol, status string) {
	r.SessionsTotal.WithLabelValues(protocol, status).Inc()
}

// RecordRun counts a finished run
func (r *Registry) RecordRun(status string, at time.Time) {
	r.RunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		r.LastRunTimestamp.Set(float64(at.Unix()))
	}
}

// SetSizes records the ownership index and catalog sizes
func (r *Registry) SetSizes(addresses, declarations int) {
	r.OwnedAddresses.Set(float64(addresses))
	r.Declarations.Set(float64(declarations))
}
