package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/output"
)

var authorsCmd = &cobra.Command{
	Use:   "authors <store>",
	Short: "Print the author summaries",
	Long: `Print one row per author: first and last commit, active span, commit count and
changed lines. Changed lines are "unknown" when any of the author's commits came from
a metadata-only repository.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthors,
}

func init() {
	authorsCmd.Flags().String("sort", "name", "sort by name, first or commits")
}

func runAuthors(cmd *cobra.Command, args []string) error {
	store, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	authors, err := store.Authors(cmd.Context())
	if err != nil {
		return err
	}

	switch by, _ := cmd.Flags().GetString("sort"); by {
	case "name":
	case "first":
		sort.SliceStable(authors, func(i, j int) bool { return authors[i].FirstTime < authors[j].FirstTime })
	case "commits":
		sort.SliceStable(authors, func(i, j int) bool { return authors[i].NCommits > authors[j].NCommits })
	default:
		return errors.ConfigErrorf("unknown sort %q (want name, first or commits)", by)
	}

	return output.WriteAuthors(cmd.OutOrStdout(), authors)
}
