package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/gitcohort/internal/config"
	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/logging"
	"github.com/rohankatakam/gitcohort/internal/meta"
	"github.com/rohankatakam/gitcohort/internal/storage"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile  string
	metaFile string
	verbose  bool
	logger   *logrus.Logger
	logClose io.Closer
	cfg      *config.Config
	project  *meta.Project
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logClose != nil {
		logClose.Close()
	}
	if err != nil {
		reportError(os.Stderr, err, verbose)
		os.Exit(errors.ExitCode(err))
	}
}

// reportError prints err for the user. Non-fatal errors mean the command finished
// but skipped some input; -v prints the full error context.
func reportError(w io.Writer, err error, detailed bool) {
	switch {
	case detailed:
		fmt.Fprint(w, errors.Details(err))
	case errors.IsFatal(err) || errors.GetType(err) == errors.ErrorTypeInternal:
		fmt.Fprintf(w, "Error: %v\n", err)
	default:
		fmt.Fprintf(w, "Completed with errors: %v\n", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gitcohort",
	Short: "Contributor cohort histograms from git history",
	Long: `gitcohort ingests the commit history of many git repositories into one store and
aggregates it into cohort histograms: how many authors, commits or changed lines each
group of contributors accounts for per year or month.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to load config")
		}

		logger, logClose, err = logging.New(logging.Config{
			Level:      cfg.Log.Level,
			Verbose:    verbose,
			JSONFormat: cfg.Log.JSON,
			OutputFile: cfg.Log.File,
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to set up logging")
		}

		if metaFile != "" {
			project, err = meta.Load(metaFile)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"project": project.Name,
				"domains": len(project.Domains),
				"repos":   len(project.Repos),
			}).Debug("Loaded project metadata")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .gitcohort/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&metaFile, "meta", "", "project metadata file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`gitcohort {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(authorsCmd)
	rootCmd.AddCommand(configCmd)
}

// openStore opens the commit store named on the command line
func openStore(dsn string) (*storage.SQLStore, error) {
	return storage.Open(dsn, storage.Options{MinYear: cfg.Ingest.MinYear}, logger)
}
