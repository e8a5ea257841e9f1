package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcohort/internal/cache"
	"github.com/rohankatakam/gitcohort/internal/cohort"
	"github.com/rohankatakam/gitcohort/internal/config"
	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/output"
)

var plotCmd = &cobra.Command{
	Use:   "plot <store> [output]",
	Short: "Aggregate the store into a cohort histogram",
	Long: `Aggregate the stored commits into a cohort x interval series and write it as
pipe-separated text (long or wide) or JSON, to the output file or standard output.

Cohorts:
  firstyear  year of the author's first commit anywhere
  domain     e-mail domain, refined by --meta
  repo       repository, or the cohort --meta assigns to it
  prefix     top-level directory of the changed files
  suffix     file suffix of the changed files

Units: authors (active in the interval), commits, changes (lines changed).

Examples:
  gitcohort plot gnome.db
  gitcohort --meta gnome.yaml plot --cohort domain --unit commits --format wide gnome.db out.csv`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPlot,
}

func init() {
	plotCmd.Flags().String("cohort", "", "cohort strategy: firstyear, domain, repo, prefix or suffix")
	plotCmd.Flags().String("interval", "", "bucket size: year or month")
	plotCmd.Flags().String("unit", "", "value per cell: authors, commits or changes")
	plotCmd.Flags().Int("from", 0, "first year to include")
	plotCmd.Flags().Int("to", 0, "last year to include")
	plotCmd.Flags().String("format", "", "output format: long, wide or json")
	plotCmd.Flags().Int("max-cohorts", 0, "fold all but the largest N cohorts into \"other\"")
	plotCmd.Flags().Int("brief-days", 0, "firstyear: move authors active at most N days into \"Brief\"")
	plotCmd.Flags().Bool("registrable", false, "domain: collapse to the registrable domain")
	plotCmd.Flags().Bool("no-cache", false, "neither read nor write the series cache")
}

// applyPlotFlags lets explicitly given flags override the configured plot defaults
func applyPlotFlags(cmd *cobra.Command, plot *config.PlotConfig) {
	flags := cmd.Flags()
	if flags.Changed("cohort") {
		plot.Cohort, _ = flags.GetString("cohort")
	}
	if flags.Changed("interval") {
		plot.Interval, _ = flags.GetString("interval")
	}
	if flags.Changed("unit") {
		plot.Unit, _ = flags.GetString("unit")
	}
	if flags.Changed("format") {
		plot.Format, _ = flags.GetString("format")
	}
	if flags.Changed("max-cohorts") {
		plot.MaxCohorts, _ = flags.GetInt("max-cohorts")
	}
	if flags.Changed("brief-days") {
		plot.BriefDays, _ = flags.GetInt("brief-days")
	}
	if flags.Changed("registrable") {
		plot.RegistrableDomains, _ = flags.GetBool("registrable")
	}
}

// buildQuery turns the plot settings into a query with canonical enum values
func buildQuery(plot config.PlotConfig, from, to int) (cohort.Query, error) {
	strategy, err := cohort.ParseStrategy(plot.Cohort)
	if err != nil {
		return cohort.Query{}, err
	}
	interval, err := cohort.ParseInterval(plot.Interval)
	if err != nil {
		return cohort.Query{}, err
	}
	unit, err := cohort.ParseUnit(plot.Unit)
	if err != nil {
		return cohort.Query{}, err
	}
	q := cohort.Query{
		Cohort:      strategy,
		Interval:    interval,
		Unit:        unit,
		FromYear:    from,
		ToYear:      to,
		BriefDays:   plot.BriefDays,
		MaxCohorts:  plot.MaxCohorts,
		Registrable: plot.RegistrableDomains,
	}
	return q, q.Validate()
}

func runPlot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	applyPlotFlags(cmd, &cfg.Plot)
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	result := cfg.Validate(config.ValidationContextPlot)
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}
	if err := result.Err(); err != nil {
		return err
	}

	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	q, err := buildQuery(cfg.Plot, from, to)
	if err != nil {
		return err
	}
	sink, err := output.NewSink(cfg.Plot.Format)
	if err != nil {
		return err
	}

	store, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	engine := cohort.NewEngine(store, project, logger)
	if cfg.Cache.Enabled {
		sc, err := cache.Open(cfg.CachePath(args[0]), logger)
		if err != nil {
			// The cache only saves time; a locked or unwritable cache file is not fatal.
			logger.WithError(err).Warn("Series cache unavailable, aggregating without it")
		} else {
			defer sc.Close()
			engine = engine.WithCache(sc)
		}
	}

	series, err := engine.Aggregate(ctx, q)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"cohorts": len(series.Cohorts),
		"buckets": len(series.Buckets),
	}).Debug("Series aggregated")

	if len(args) < 2 || args[1] == "-" {
		return writeSeries(sink, series, cmd.OutOrStdout())
	}

	f, err := os.Create(args[1])
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to create output file")
	}
	if err := writeSeries(sink, series, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", args[1], err)
	}
	logger.WithField("path", args[1]).Info("Series written")
	return nil
}

func writeSeries(sink output.Sink, s *cohort.Series, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := sink.Write(s, bw); err != nil {
		return fmt.Errorf("failed to write series: %w", err)
	}
	return bw.Flush()
}
