package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/hargabyte/stableid/internal/extract"
	"github.com/hargabyte/stableid/internal/metrics"
	"github.com/hargabyte/stableid/internal/output"
	"github.com/hargabyte/stableid/internal/propagate"
	"github.com/spf13/cobra"
)

// errPropagationErrors makes propagate exit 1. Primary mode fails on row
// lookup or file errors; all-columns mode only on row errors.
var errPropagationErrors = errors.New("propagation finished with errors")

// propagateCmd represents the propagate command
var propagateCmd = &cobra.Command{
	Use:   "propagate",
	Short: "Replace semantic ids with stable ids in source files",
	Long: `Rewrite source files in place, substituting stable ids for semantic ids.

Modes:
  primary (default)  Only the id column is rewritten, using the registry map of
                     the file's own class. An id with no stable id is reported
                     as an error and left as is. Files whose class is not in
                     the registry, or that lack the id column, are skipped.
  all                Every cell in every column whose value equals any known
                     semantic id is rewritten. This resolves references to
                     other classes, but free text that happens to equal a
                     semantic id is rewritten too.

Blank cells are never rewritten. A file is only written back when at least one
cell changed; --dry-run reports the counts without writing anything.

In primary mode the command exits 1 when a lookup fails or a file cannot be
read or written. In all mode a file that cannot be read or written is logged
as a warning and the command still exits 0.

The registry must exist: run 'stableid reconcile' first.`,
	Example: `  stableid propagate --dry-run
  stableid propagate --csv-dir data --mode all
  stableid propagate --csv-dir data --csv-pattern 'Property*.csv' --id-column key`,
	Args: cobra.NoArgs,
	RunE: runPropagate,
}

var (
	propagateCSVDir       string
	propagateCSVPattern   string
	propagateRegistryPath string
	propagateIDColumn     string
	propagateMode         string
	propagateDryRun       bool
	propagateMetricsFile  string
)

func init() {
	rootCmd.AddCommand(propagateCmd)

	propagateCmd.Flags().StringVar(&propagateCSVDir, "csv-dir", "", "Directory of source files (default from config: data)")
	propagateCmd.Flags().StringVar(&propagateCSVPattern, "csv-pattern", "", "Glob of source files within --csv-dir (default from config: *.csv)")
	propagateCmd.Flags().StringVar(&propagateRegistryPath, "registry-path", "", "Registry location (default from config)")
	propagateCmd.Flags().StringVar(&propagateIDColumn, "id-column", "", "Name of the identifier column (default from config: id)")
	propagateCmd.Flags().StringVar(&propagateMode, "mode", "", "Rewrite mode: primary | all (default from config: primary)")
	propagateCmd.Flags().BoolVar(&propagateDryRun, "dry-run", false, "Report replacements without writing files")
	propagateCmd.Flags().StringVar(&propagateMetricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
}

func runPropagate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	idColumn := orDefault(propagateIDColumn, cfg.Sources.IDColumn)
	policy, err := parsePolicy(orDefault(propagateMode, cfg.Propagate.Mode), idColumn)
	if err != nil {
		return err
	}

	delim, err := delimiterRune(cfg.Sources.Delimiter)
	if err != nil {
		return err
	}

	svc, err := openService(ctx, cfg, propagateRegistryPath)
	if err != nil {
		return err
	}

	dir := orDefault(propagateCSVDir, cfg.Propagate.Dir)
	sources, err := extract.Discover(dir, orDefault(propagateCSVPattern, cfg.Propagate.Pattern))
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		logger.Warn("no source files matched", "dir", dir)
	}

	p := &propagate.Propagator{
		Registry:  svc.Registry(),
		Policy:    policy,
		DryRun:    propagateDryRun,
		Delimiter: delim,
		Logger:    logger,
	}
	sum := p.Run(sources)

	logger.Info("propagation finished",
		"mode", policy.String(),
		"replaced", sum.Replaced,
		"skipped", sum.Skipped,
		"errors", sum.Errors,
		"dry_run", sum.DryRun)
	for _, col := range sum.SortedColumns() {
		logger.Debug("column replacements", "column", col, "count", sum.Columns[col])
	}

	if path := orDefault(propagateMetricsFile, cfg.Metrics.Textfile); path != "" {
		c := metrics.New()
		c.ObserveRegistry(svc.Registry())
		c.ObservePropagation(sum.Columns, sum.Errors)
		c.MarkRun("propagate", time.Now())
		if err := c.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if err := writeOutput(cmd, cfg, propagateOutput(sum, policy)); err != nil {
		return err
	}

	if propagationFailed(sum, policy) {
		return errPropagationErrors
	}
	return nil
}

// propagationFailed decides the exit status of a run. File errors in
// all-columns mode are reported but do not fail the command.
func propagationFailed(sum *propagate.Summary, policy propagate.Policy) bool {
	if !policy.IsAllColumns() {
		return !sum.OK()
	}
	fileErrors := sum.FileErrors()
	if fileErrors > 0 {
		logger.Warn("some sources could not be rewritten", "files", fileErrors)
	}
	return sum.Errors > fileErrors
}

// parsePolicy maps a --mode value to a propagation policy.
func parsePolicy(mode, idColumn string) (propagate.Policy, error) {
	switch mode {
	case "primary":
		return propagate.PrimaryColumnOnly(idColumn), nil
	case "all":
		return propagate.AllColumns(), nil
	default:
		return propagate.Policy{}, fmt.Errorf("invalid mode: %q (expected primary or all)", mode)
	}
}

func propagateOutput(sum *propagate.Summary, policy propagate.Policy) *output.PropagateOutput {
	mode := "primary"
	if policy.IsAllColumns() {
		mode = "all"
	}
	out := &output.PropagateOutput{
		Mode:     mode,
		DryRun:   sum.DryRun,
		Replaced: sum.Replaced,
		Skipped:  sum.Skipped,
		Errors:   sum.Errors,
		Columns:  sum.Columns,
		Files:    make([]output.FileSummary, 0, len(sum.Files)),
	}
	for _, f := range sum.Files {
		fs := output.FileSummary{
			Path:       f.Path,
			Replaced:   f.Replaced,
			Written:    f.Written,
			SkipReason: f.SkipReason,
		}
		if f.Err != nil {
			fs.Error = f.Err.Error()
		}
		for _, re := range f.RowErrors {
			fs.Unresolved = append(fs.Unresolved, re.Error())
		}
		out.Files = append(out.Files, fs)
	}
	return out
}
