package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcohort/internal/config"
	"github.com/rohankatakam/gitcohort/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and write gitcohort configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Long: `Write the configuration gitcohort would use right now (defaults, config file and
GITCOHORT_* environment overrides) as YAML. The default path is .gitcohort/config.yaml.

Examples:
  gitcohort config init
  GITCOHORT_PLOT_COHORT=domain gitcohort config init ~/.gitcohort/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".gitcohort", "config.yaml")
	if len(args) == 1 {
		path = args[0]
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigErrorf("%s already exists (use --force to overwrite)", path)
	}

	result := cfg.Validate(config.ValidationContextAll)
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}
	if err := result.Err(); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to save config")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
