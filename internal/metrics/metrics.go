// Package metrics exposes registry and run statistics as Prometheus gauges.
//
// stableid is a batch tool, so nothing is scraped. A Collector is filled in
// during a run and written once to a node_exporter textfile collector file.
package metrics

import (
	"fmt"
	"time"

	"github.com/hargabyte/stableid/internal/registry"
	"github.com/hargabyte/stableid/internal/report"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stableid"

// Collector holds the gauges for one run in a private registry.
type Collector struct {
	reg *prometheus.Registry

	registryEntries *prometheus.GaugeVec // By class
	newIDs          prometheus.Gauge
	missingIDs      prometheus.Gauge

	replacements      *prometheus.GaugeVec // By column
	propagationErrors prometheus.Gauge

	lastRun *prometheus.GaugeVec // By command
}

// New creates a Collector with all gauges registered.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),

		registryEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Number of stable identifier bindings per class",
		}, []string{"class"}),

		newIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "new_ids",
			Help:      "Stable identifiers minted by the last reconciliation",
		}),

		missingIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_ids",
			Help:      "Registry entries absent from sources at the last reconciliation",
		}),

		replacements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "propagated_replacements",
			Help:      "Cells rewritten to stable identifiers by the last propagation, per column",
		}, []string{"column"}),

		propagationErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "propagation_errors",
			Help:      "Lookup and file errors during the last propagation",
		}),

		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run, per command",
		}, []string{"command"}),
	}

	c.reg.MustRegister(
		c.registryEntries,
		c.newIDs,
		c.missingIDs,
		c.replacements,
		c.propagationErrors,
		c.lastRun,
	)
	return c
}

// Gatherer returns the collector's registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.reg
}

// ObserveRegistry records the per-class entry counts of r.
func (c *Collector) ObserveRegistry(r *registry.Registry) {
	c.registryEntries.Reset()
	for _, class := range r.Classes() {
		c.registryEntries.WithLabelValues(class).Set(float64(r.ClassLen(class)))
	}
}

// ObserveSync records the outcome of a reconciliation.
func (c *Collector) ObserveSync(r *report.SyncReport) {
	c.newIDs.Set(float64(r.NewCount()))
	c.missingIDs.Set(float64(r.MissingCount()))
}

// ObservePropagation records replacement counts per column and the number
// of errors of a propagation run.
func (c *Collector) ObservePropagation(byColumn map[string]int, errors int) {
	c.replacements.Reset()
	for col, n := range byColumn {
		c.replacements.WithLabelValues(col).Set(float64(n))
	}
	c.propagationErrors.Set(float64(errors))
}

// MarkRun stamps command as completed at t.
func (c *Collector) MarkRun(command string, t time.Time) {
	c.lastRun.WithLabelValues(command).Set(float64(t.Unix()))
}

// WriteTextfile writes all gauges to path in the Prometheus text format.
// The write is atomic so a collector never reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
