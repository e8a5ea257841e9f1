package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcohort/internal/cache"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <store>",
	Short: "Recompute every author summary from the raw commits",
	Long: `Drop the authors table and derive it again from raw_commits, then clear the
series cache of the store. Run this after editing raw_commits by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	store, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.RebuildAll(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %s author summaries\n", humanize.Comma(int64(n)))

	// Cached series are keyed by store revision, which a rebuild does not change.
	path := cfg.CachePath(args[0])
	if _, err := os.Stat(path); err == nil {
		sc, err := cache.Open(path, logger)
		if err != nil {
			return fmt.Errorf("failed to open series cache: %w", err)
		}
		defer sc.Close()
		stale := sc.Len()
		if err := sc.Clear(); err != nil {
			return fmt.Errorf("failed to clear series cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cached series\n", humanize.Comma(int64(stale)))
	}
	return nil
}
