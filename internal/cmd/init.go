package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hargabyte/stableid/internal/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .stableid/config.yaml",
	Long: `Create the .stableid directory and a config file holding the defaults.

Every setting in the file can be overridden by command flags. Commands run in
a subdirectory find the config by walking up the directory tree.

Examples:
  stableid init`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	path, err := config.SaveDefault(cwd)
	if err != nil {
		return err
	}

	relPath, err := filepath.Rel(cwd, path)
	if err != nil {
		relPath = path
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized stableid config at %s\n", relPath)
	return nil
}
