package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/hargabyte/stableid/internal/extract"
	"github.com/hargabyte/stableid/internal/output"
	"github.com/hargabyte/stableid/internal/reconcile"
	"github.com/hargabyte/stableid/internal/report"
	"github.com/spf13/cobra"
)

// errDriftDetected makes reconcile exit 1 when identifiers went missing.
var errDriftDetected = errors.New("identifiers missing from sources (see report)")

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Mint ids for new identifiers and report missing ones",
	Long: `Compare the identifiers found in the source files against the registry.

Each source file is one class, named after the file stem
(out/PropertyValue.csv is class PropertyValue). Identifiers not yet in the
registry get a freshly minted stable id. Registry entries whose identifier no
longer appears in the sources are reported as missing, together with the
current identifiers of the same class that look like a rename.

Missing entries are never deleted. The registry is saved on every run, and
the sync report is written to the report path. When $GITHUB_OUTPUT is set the
new_count, missing_count, has_new and has_missing step outputs are appended.

Exit status is 1 when any identifier is missing, so CI can block the change
until a human decides whether it was a rename.`,
	Example: `  stableid reconcile
  stableid reconcile --csv-pattern 'out/*.csv' --registry-path config/uuid_mapping.json
  stableid reconcile --report-path drift.json --metrics-file /var/lib/node_exporter/stableid.prom`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var (
	reconcileCSVPattern   string
	reconcileRegistryPath string
	reconcileIDColumn     string
	reconcileReportPath   string
	reconcileGitHubOutput string
	reconcileMetricsFile  string
)

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileCSVPattern, "csv-pattern", "", "Glob of source files (default from config: out/*.csv)")
	reconcileCmd.Flags().StringVar(&reconcileRegistryPath, "registry-path", "", "Registry location (default from config)")
	reconcileCmd.Flags().StringVar(&reconcileIDColumn, "id-column", "", "Name of the identifier column (default from config: id)")
	reconcileCmd.Flags().StringVar(&reconcileReportPath, "report-path", "", "Sync report file (default from config: id_sync_report.json)")
	reconcileCmd.Flags().StringVar(&reconcileGitHubOutput, "github-output", "", "GitHub step outputs file (default: $GITHUB_OUTPUT)")
	reconcileCmd.Flags().StringVar(&reconcileMetricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	delim, err := delimiterRune(cfg.Sources.Delimiter)
	if err != nil {
		return err
	}

	pattern := orDefault(reconcileCSVPattern, cfg.Sources.Pattern)
	sources, err := extract.Discover("", pattern)
	if err != nil {
		return err
	}
	logger.Debug("sources discovered", "pattern", pattern, "count", len(sources))

	backend, err := openBackend(ctx, cfg, reconcileRegistryPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	reportPath := orDefault(reconcileReportPath, cfg.Reconcile.ReportPath)
	idColumn := orDefault(reconcileIDColumn, cfg.Sources.IDColumn)

	res, err := reconcile.Run(ctx, reconcile.Options{
		Backend: backend,
		Sources: sources,
		Reader: &extract.Reader{
			IDColumn:  idColumn,
			Delimiter: delim,
			Logger:    logger,
		},
		Reconciler: &reconcile.Reconciler{
			Minter:         reconcile.UUIDMinter{Prefix: cfg.Reconcile.IDPrefix},
			Threshold:      cfg.Reconcile.SimilarityThreshold,
			MaxSuggestions: cfg.Reconcile.MaxSuggestions,
			Logger:         logger,
		},
		ReportPath:   reportPath,
		GitHubOutput: orDefault(reconcileGitHubOutput, os.Getenv("GITHUB_OUTPUT")),
		MetricsFile:  orDefault(reconcileMetricsFile, cfg.Metrics.Textfile),
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	out := reconcileOutput(res, backend.Name())
	if !res.Skipped {
		out.ReportPath = reportPath
	}
	if err := writeOutput(cmd, cfg, out); err != nil {
		return err
	}

	if !res.Report.OK() {
		return errDriftDetected
	}
	return nil
}

func reconcileOutput(res *reconcile.Result, source string) *output.ReconcileOutput {
	out := &output.ReconcileOutput{
		Registry:     source,
		Skipped:      res.Skipped,
		NewCount:     res.Report.NewCount(),
		MissingCount: res.Report.MissingCount(),
	}
	for _, m := range res.Report.MissingIDs {
		out.Missing = append(out.Missing, output.MissingSummary{
			Class:      m.Class,
			SemanticID: m.SemanticID,
			UUID:       m.UUID,
			Similar:    candidates(m.Similar),
		})
	}
	return out
}

func candidates(s []report.Suggestion) []string {
	if len(s) == 0 {
		return nil
	}
	names := make([]string, len(s))
	for i, sug := range s {
		names[i] = fmt.Sprintf("%s (%.2f)", sug.Candidate, sug.Ratio)
	}
	return names
}
