package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcohort/internal/config"
	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/ingestion"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <store> <repo>...",
	Short: "Merge the history of git repositories into the store",
	Long: `Scan each repository with git log and merge its commits into the store.

Re-ingesting a repository is idempotent: commits already stored are left alone and
only authors with new commits are recomputed. Repositories whose branches and HEAD
have not moved since the last run are skipped unless --force is given.

Partial and shallow clones are ingested metadata-only: they count commits and
authors, but their line counts are unknown.

A repository that cannot be read is skipped and reported at the end; the command
then exits non-zero after ingesting everything else.

Examples:
  gitcohort ingest gnome.db ~/src/gnome/*
  gitcohort ingest --workers 8 postgres://localhost/gnome ~/src/gnome/*`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Int("workers", 0, "repositories scanned in parallel (default from ingest.workers)")
	ingestCmd.Flags().Bool("force", false, "rescan repositories whose refs have not moved")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("workers") {
		cfg.Ingest.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("force") {
		cfg.Ingest.Force, _ = cmd.Flags().GetBool("force")
	}

	result := cfg.Validate(config.ValidationContextIngest)
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}
	if err := result.Err(); err != nil {
		return err
	}

	store, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	orch := ingestion.NewOrchestrator(store, logger, ingestion.Options{
		Workers: cfg.Ingest.Workers,
		Force:   cfg.Ingest.Force,
	}).WithProgress(ingestion.NewProgress(os.Stderr, logger))

	report, err := orch.Run(ctx, args[1:])
	if err != nil {
		return err
	}

	report.Write(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout())

	// Rejected records are reported but do not fail the run; skipped repositories do.
	if err := report.RepoErrors(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSource, errors.SeverityMedium,
			fmt.Sprintf("%d of %d repositories could not be ingested", report.Failed(), len(report.Repos)))
	}
	return nil
}
