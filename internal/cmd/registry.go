package cmd

import (
	"errors"
	"fmt"

	"github.com/hargabyte/stableid/internal/config"
	"github.com/hargabyte/stableid/internal/output"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/spf13/cobra"
)

// registryCmd groups registry maintenance subcommands
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and migrate the registry",
	Long: `Inspect the registry or copy it between storage backends.

The registry can live in a JSON file (the default), a SQLite database, a
PostgreSQL database or an S3 object. Migrating copies every binding as is, so
stable ids survive a change of backend.`,
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show per-class binding counts",
	Args:  cobra.NoArgs,
	RunE:  runRegistryShow,
}

var registryMigrateCmd = &cobra.Command{
	Use:   "migrate --to <backend>",
	Short: "Copy the registry into another backend",
	Long: `Copy the registry from the configured backend into another one.

The destination takes its settings from the same config file; --to-path
overrides its location. An existing destination registry is only replaced
with --force. After migrating, set registry.backend in .stableid/config.yaml.`,
	Example: `  stableid registry migrate --to sqlite
  stableid registry migrate --to s3 --to-path registries/uuid_mapping.json
  stableid --registry-backend sqlite registry migrate --to file --to-path config/uuid_mapping.json`,
	Args: cobra.NoArgs,
	RunE: runRegistryMigrate,
}

var (
	registryPath       string
	registryMigrateTo  string
	registryMigrateDst string
	registryForce      bool
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryMigrateCmd)

	registryCmd.PersistentFlags().StringVar(&registryPath, "registry-path", "", "Registry location (default from config)")
	registryMigrateCmd.Flags().StringVar(&registryMigrateTo, "to", "", "Destination backend (file|sqlite|postgres|s3)")
	registryMigrateCmd.Flags().StringVar(&registryMigrateDst, "to-path", "", "Destination location (default from config)")
	registryMigrateCmd.Flags().BoolVar(&registryForce, "force", false, "Replace an existing destination registry")
}

func runRegistryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openService(commandContext(cmd), cfg, registryPath)
	if err != nil {
		return err
	}

	out := &output.RegistryOutput{Source: svc.Source(), Classes: []output.ClassSummary{}}
	for _, class := range svc.ListClasses() {
		// Count bindings, not distinct semantic ids
		n := len(svc.Entries(class))
		out.Classes = append(out.Classes, output.ClassSummary{Name: class, Count: n})
	}
	out.Total = svc.Len()
	return writeOutput(cmd, cfg, out)
}

func runRegistryMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	dstCfg := *cfg
	dstCfg.Registry.Backend = registryMigrateTo
	if err := config.Validate(&dstCfg); err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if dstCfg.Registry == cfg.Registry && registryMigrateDst == "" {
		return fmt.Errorf("source and destination are the same registry")
	}

	src, err := openBackend(ctx, cfg, registryPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := openBackend(ctx, &dstCfg, registryMigrateDst)
	if err != nil {
		return err
	}
	defer dst.Close()

	if !registryForce {
		_, err := dst.Load(ctx)
		switch {
		case err == nil:
			return fmt.Errorf("destination %s already holds a registry (use --force to replace it)", dst.Name())
		case !errors.Is(err, registry.ErrNotExist):
			return fmt.Errorf("check destination %s: %w", dst.Name(), err)
		}
	}

	n, err := registry.Copy(ctx, src, dst)
	if err != nil {
		return err
	}
	logger.Info("registry migrated", "from", src.Name(), "to", dst.Name(), "entries", n)

	return writeOutput(cmd, cfg, &output.MigrateOutput{From: src.Name(), To: dst.Name(), Entries: n})
}
