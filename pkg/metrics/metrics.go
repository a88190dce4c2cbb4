// Package metrics exposes prometheus instrumentation for the operator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the operator's prometheus collectors
type Metrics struct {
	Reconciles      *prometheus.CounterVec
	ProbeResults    *prometheus.CounterVec
	SyncConflicts   prometheus.Counter
	DocumentEntries prometheus.Gauge
}

// Reconcile outcome label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultRemoved = "removed"
)

// New creates and registers the operator metrics. A nil registerer falls
// back to the default prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Reconciles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openapi_discovery_reconciles_total",
				Help: "Number of service reconciliations by outcome.",
			},
			[]string{"result"},
		),
		ProbeResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openapi_discovery_probe_results_total",
				Help: "Number of availability probes by outcome.",
			},
			[]string{"result"},
		),
		SyncConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "openapi_discovery_sync_conflicts_total",
				Help: "Number of optimistic-concurrency conflicts hit while writing the discovery document.",
			},
		),
		DocumentEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "openapi_discovery_document_entries",
				Help: "Number of entries in the discovery document after the last write.",
			},
		),
	}

	reg.MustRegister(m.Reconciles, m.ProbeResults, m.SyncConflicts, m.DocumentEntries)
	return m
}
