package cmd

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/hargabyte/stableid/internal/config"
	"github.com/hargabyte/stableid/internal/lookup"
	"github.com/hargabyte/stableid/internal/output"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/spf13/cobra"
)

// Shared utility functions for command implementations

// loadConfig reads --config when given, otherwise discovers
// .stableid/config.yaml from the working directory. Global flag overrides
// are applied and the result is validated again.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}

	if registryBackend != "" {
		cfg.Registry.Backend = registryBackend
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyRegistryPath points the selected backend at path: the document of
// the file backend, the database of the sqlite backend, or the object key of
// the s3 backend. Empty leaves cfg unchanged.
func applyRegistryPath(cfg *config.RegistryConfig, path string) error {
	if path == "" {
		return nil
	}
	switch cfg.Backend {
	case registry.BackendFile, "":
		cfg.Path = path
	case registry.BackendSQLite:
		cfg.SQLitePath = path
	case registry.BackendS3:
		cfg.S3.Key = path
	default:
		return fmt.Errorf("--registry-path is not supported by the %s backend", cfg.Backend)
	}
	return nil
}

// openBackend opens the configured registry backend, honoring a
// --registry-path override.
func openBackend(ctx context.Context, cfg *config.Config, path string) (registry.Backend, error) {
	rc := cfg.Registry
	if err := applyRegistryPath(&rc, path); err != nil {
		return nil, err
	}
	b, err := registry.Open(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return b, nil
}

// openService loads an existing registry for read-only use. A registry that
// was never saved is an error telling the operator to reconcile first.
func openService(ctx context.Context, cfg *config.Config, path string) (*lookup.Service, error) {
	b, err := openBackend(ctx, cfg, path)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return lookup.New(ctx, b)
}

// delimiterRune converts the configured delimiter to a rune.
func delimiterRune(s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// orDefault returns flag unless it is empty.
func orDefault(flag, def string) string {
	if flag != "" {
		return flag
	}
	return def
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeOutput renders v to the command's stdout in the configured format.
func writeOutput(cmd *cobra.Command, cfg *config.Config, v interface{}) error {
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	f, err := output.GetFormatter(format)
	if err != nil {
		return err
	}
	return f.FormatToWriter(cmd.OutOrStdout(), v)
}
