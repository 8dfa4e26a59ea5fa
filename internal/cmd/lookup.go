package cmd

import (
	"fmt"

	"github.com/hargabyte/stableid/internal/lookup"
	"github.com/hargabyte/stableid/internal/output"
	"github.com/spf13/cobra"
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <class> [semantic_id]",
	Short: "Resolve identifiers from the registry",
	Long: `Resolve a semantic id to its stable id, or the reverse.

The registry is read-only here; identifiers that are not in it yet must be
minted by 'stableid reconcile' first. Exit status is 1 when the registry is
missing or the identifier has no binding.

Use --bare in scripts to print only the resolved identifier.`,
	Example: `  stableid lookup PropertyValue ebv_genetic_diversity
  stableid lookup --bare PropertyValue ebv_genetic_diversity
  stableid lookup --reverse PropertyValue mbo_1f0c4e8a-...
  stableid lookup --all PropertyValue
  stableid lookup --classes`,
	Args: cobra.MaximumNArgs(2),
	RunE: runLookup,
}

var (
	lookupRegistryPath string
	lookupReverse      bool
	lookupAll          bool
	lookupClasses      bool
	lookupBare         bool
)

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupRegistryPath, "registry-path", "", "Registry location (default from config)")
	lookupCmd.Flags().BoolVar(&lookupReverse, "reverse", false, "Resolve a stable id to its semantic id")
	lookupCmd.Flags().BoolVar(&lookupAll, "all", false, "Print every binding of the class")
	lookupCmd.Flags().BoolVar(&lookupClasses, "classes", false, "List the registry classes")
	lookupCmd.Flags().BoolVar(&lookupBare, "bare", false, "Print only the resolved identifier")
}

func runLookup(cmd *cobra.Command, args []string) error {
	switch {
	case lookupClasses:
		if len(args) != 0 {
			return fmt.Errorf("--classes takes no arguments")
		}
	case lookupAll:
		if len(args) != 1 {
			return fmt.Errorf("--all requires exactly one class")
		}
	default:
		if len(args) != 2 {
			return fmt.Errorf("class and identifier required (see 'stableid lookup --help')")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openService(commandContext(cmd), cfg, lookupRegistryPath)
	if err != nil {
		return err
	}

	switch {
	case lookupClasses:
		classes := svc.ListClasses()
		return writeOutput(cmd, cfg, &output.ClassListOutput{Classes: classes, Count: len(classes)})

	case lookupAll:
		ids := svc.GetAllUUIDs(args[0])
		return writeOutput(cmd, cfg, &output.ClassOutput{
			Class:  args[0],
			Exists: svc.HasClass(args[0]),
			Count:  len(ids),
			IDs:    ids,
		})

	case lookupReverse:
		class, stable := args[0], args[1]
		semantic, ok := svc.GetSemanticID(class, stable)
		if !ok {
			return fmt.Errorf("%w for stable id %s/%s", lookup.ErrNotFound, class, stable)
		}
		if lookupBare {
			fmt.Fprintln(cmd.OutOrStdout(), semantic)
			return nil
		}
		return writeOutput(cmd, cfg, &output.LookupOutput{Class: class, SemanticID: semantic, UUID: stable, Found: true})

	default:
		class, semantic := args[0], args[1]
		stable, _, err := svc.GetUUID(class, semantic, true)
		if err != nil {
			return err
		}
		if lookupBare {
			fmt.Fprintln(cmd.OutOrStdout(), stable)
			return nil
		}
		return writeOutput(cmd, cfg, &output.LookupOutput{Class: class, SemanticID: semantic, UUID: stable, Found: true})
	}
}
