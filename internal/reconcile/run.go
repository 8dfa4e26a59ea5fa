package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/hargabyte/stableid/internal/extract"
	"github.com/hargabyte/stableid/internal/metrics"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/hargabyte/stableid/internal/report"
)

// Options configures a full reconciliation run.
type Options struct {
	Backend registry.Backend
	Sources []extract.Source
	Reader  *extract.Reader

	Reconciler *Reconciler

	// ReportPath receives the sync report. Empty skips the file.
	ReportPath string
	// GitHubOutput is the $GITHUB_OUTPUT file. Empty skips step outputs.
	GitHubOutput string
	// MetricsFile receives a Prometheus textfile. Empty skips metrics.
	MetricsFile string
}

// Result is the outcome of Run.
type Result struct {
	Report   *report.SyncReport
	Registry *registry.Registry

	// Skipped is set when no identifiers were found and the registry was
	// left untouched.
	Skipped bool
}

// Run loads the registry, reads the sources, reconciles, and saves the
// registry followed by the report, step outputs and metrics.
//
// The registry is saved even when nothing changed. When the sources yield
// no classes at all the run stops before saving and reports Skipped.
func Run(ctx context.Context, opts Options) (*Result, error) {
	rec := opts.Reconciler
	if rec == nil {
		rec = &Reconciler{}
	}
	log := rec.logger()

	reg, err := registry.Load(ctx, opts.Backend)
	if err != nil {
		return nil, err
	}
	log.Debug("registry loaded", "backend", opts.Backend.Name(), "classes", len(reg.Classes()), "entries", reg.Len())

	reader := opts.Reader
	if reader == nil {
		reader = &extract.Reader{IDColumn: "id", Logger: log}
	}
	if len(opts.Sources) == 0 {
		log.Warn("no source files matched")
	}
	snap := reader.Read(opts.Sources)
	log.Debug("sources read", "classes", len(snap.Classes()), "identifiers", snap.Len())

	if snap.Empty() {
		log.Warn("no identifiers found in sources, registry left unchanged")
		now := time.Now
		if rec.Now != nil {
			now = rec.Now
		}
		return &Result{Report: report.NewSyncReport(now()), Registry: reg, Skipped: true}, nil
	}

	rep, err := rec.Reconcile(reg, snap)
	if err != nil {
		return nil, err
	}

	byClass := rep.MissingByClass()
	for _, class := range reg.Classes() {
		if missing := byClass[class]; len(missing) > 0 {
			log.Warn("identifiers missing from sources", "class", class, "count", len(missing))
		}
	}

	if err := registry.Save(ctx, opts.Backend, reg); err != nil {
		return nil, err
	}
	log.Info("registry saved", "backend", opts.Backend.Name(), "classes", len(reg.Classes()), "entries", reg.Len())

	if opts.ReportPath != "" {
		if err := report.WriteJSON(opts.ReportPath, rep); err != nil {
			return nil, err
		}
		log.Info("report saved", "path", opts.ReportPath)
	}

	if opts.GitHubOutput != "" {
		if err := report.WriteGitHubOutput(opts.GitHubOutput, rep); err != nil {
			return nil, err
		}
	}

	if opts.MetricsFile != "" {
		c := metrics.New()
		c.ObserveRegistry(reg)
		c.ObserveSync(rep)
		c.MarkRun("reconcile", time.Now())
		if err := c.WriteTextfile(opts.MetricsFile); err != nil {
			return nil, fmt.Errorf("reconcile metrics: %w", err)
		}
	}

	return &Result{Report: rep, Registry: reg}, nil
}
