package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/git"
	"github.com/rohankatakam/gitcohort/internal/models"
	"github.com/rohankatakam/gitcohort/internal/storage"
)

// OpenFunc opens the commit source of one repository location
type OpenFunc func(ctx context.Context, path string) (git.Source, error)

// OpenGit opens a local git repository
func OpenGit(ctx context.Context, path string) (git.Source, error) {
	return git.Open(ctx, path)
}

// Options controls an ingestion run
type Options struct {
	// Workers bounds how many repositories are scanned at once
	Workers int
	// Force rescans repositories whose refs have not moved since the last run
	Force bool
}

// Orchestrator scans repositories in parallel and merges each into the store
type Orchestrator struct {
	store    storage.Store
	open     OpenFunc
	logger   *logrus.Logger
	opts     Options
	progress *Progress
}

// NewOrchestrator creates a new ingestion orchestrator
func NewOrchestrator(store storage.Store, logger *logrus.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{
		store:  store,
		open:   OpenGit,
		logger: logger,
		opts:   opts,
	}
}

// WithOpener replaces how repository locations are opened
func (o *Orchestrator) WithOpener(open OpenFunc) *Orchestrator {
	o.open = open
	return o
}

// WithProgress reports progress while the run is going
func (o *Orchestrator) WithProgress(p *Progress) *Orchestrator {
	o.progress = p
	return o
}

// Run ingests every path. Source and record errors are collected in the report and do
// not stop the run; a store error cancels the remaining scans and is returned.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*Report, error) {
	startTime := time.Now()

	run, err := o.store.StartRun(ctx)
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"run":          run.RunID,
		"repositories": len(paths),
		"workers":      o.opts.Workers,
	}).Info("Starting ingestion")

	o.progress.Start(len(paths))
	defer o.progress.Finish()

	results := make([]*RepoResult, len(paths))
	var seenMu sync.Mutex
	seen := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := o.ingestOne(gctx, path, func(repoID string) (string, bool) {
				seenMu.Lock()
				defer seenMu.Unlock()
				prev, dup := seen[repoID]
				if !dup {
					seen[repoID] = path
				}
				return prev, dup
			})
			results[i] = res
			o.progress.RepoDone(res)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := newReport(run, results)
	run.ReposOK, run.ReposFailed, run.RecordsRejected = report.Succeeded(), report.Failed(), report.Rejected()
	if err := o.store.FinishRun(ctx, run); err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"run":      run.RunID,
		"duration": time.Since(startTime).String(),
		"ok":       run.ReposOK,
		"failed":   run.ReposFailed,
		"rejected": run.RecordsRejected,
		"inserted": report.Inserted(),
	}).Info("Ingestion completed")

	return report, nil
}

// ingestOne scans one repository and merges it. Only store errors are returned; every
// other failure is recorded on the result.
func (o *Orchestrator) ingestOne(ctx context.Context, path string, claim func(string) (string, bool)) (*RepoResult, error) {
	startTime := time.Now()
	res := &RepoResult{Path: path}

	src, err := o.open(ctx, path)
	if err != nil {
		res.Err = asSourceError(err, path)
		o.logger.WithError(err).WithField("path", path).Warn("Skipping repository")
		return res, nil
	}
	res.RepoID = src.RepoID()
	logger := o.logger.WithFields(logrus.Fields{"repo": res.RepoID, "path": path})

	if prev, dup := claim(res.RepoID); dup {
		res.Err = errors.SourceError(fmt.Errorf("repository id %s already taken by %s", res.RepoID, prev), path)
		logger.Warn("Skipping repository with duplicate id")
		return res, nil
	}

	if !o.opts.Force && src.Head() != "" {
		existing, err := o.store.Repository(ctx, res.RepoID)
		switch {
		case err == nil && existing.Head == src.Head() && existing.MetadataOnly == src.MetadataOnly():
			res.Skipped = true
			res.Duration = time.Since(startTime)
			logger.WithField("refs", src.Head()).Info("Repository unchanged since last ingestion")
			return res, nil
		case err != nil && err != storage.ErrNotFound:
			return res, err
		}
	}

	// Scan fully before writing; the store lock is held only for the merge.
	var records []models.Record
	for rec, err := range src.Records(ctx) {
		if err != nil {
			if errors.IsType(err, errors.ErrorTypeRecord) {
				res.Rejected = append(res.Rejected, err)
				continue
			}
			res.Err = asSourceError(err, res.RepoID)
			logger.WithError(err).Warn("Repository scan failed")
			return res, nil
		}
		records = append(records, rec)
		o.progress.Record()
	}
	res.Records = len(records)

	repo := &models.Repository{
		RepoID:       res.RepoID,
		Path:         src.Path(),
		Head:         src.Head(),
		MetadataOnly: src.MetadataOnly(),
	}
	merged, err := o.store.Ingest(ctx, repo, records)
	if err != nil {
		return res, err
	}
	res.Inserted = merged.Inserted
	res.Duplicates = merged.Duplicates
	res.Rejected = append(res.Rejected, merged.Rejected...)
	res.MetadataOnly = repo.MetadataOnly
	res.Duration = time.Since(startTime)

	logger.WithFields(logrus.Fields{
		"records":       res.Records,
		"inserted":      res.Inserted,
		"duplicates":    res.Duplicates,
		"rejected":      len(res.Rejected),
		"metadata_only": res.MetadataOnly,
		"duration":      res.Duration.String(),
	}).Info("Repository ingested")

	return res, nil
}

func asSourceError(err error, repo string) error {
	if errors.IsType(err, errors.ErrorTypeSource) {
		return err
	}
	return errors.SourceError(err, repo)
}
