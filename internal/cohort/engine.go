package cohort

import (
	"context"
	"database/sql"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/meta"
	"github.com/rohankatakam/gitcohort/internal/models"
	"github.com/rohankatakam/gitcohort/internal/storage"
)

// SeriesCache stores computed series by key
type SeriesCache interface {
	Get(key string) (*Series, bool)
	Put(key string, s *Series) error
}

// Engine answers cohort queries against a store. It only reads, so it must not run
// while an ingestion into the same store is in progress.
type Engine struct {
	store   storage.Store
	project *meta.Project
	cache   SeriesCache
	logger  *logrus.Logger
}

// NewEngine creates an engine; project may be nil
func NewEngine(store storage.Store, project *meta.Project, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		store:   store,
		project: project,
		logger:  logger,
	}
}

// WithCache makes Aggregate reuse series computed for the same query, metadata and
// store contents
func (e *Engine) WithCache(c SeriesCache) *Engine {
	e.cache = c
	return e
}

// Aggregate computes the dense series for q
func (e *Engine) Aggregate(ctx context.Context, q Query) (*Series, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkFileData(ctx, q); err != nil {
		return nil, err
	}

	var key string
	if e.cache != nil {
		rev, err := e.store.Revision(ctx)
		if err != nil {
			return nil, err
		}
		key = q.Key() + "|" + e.project.Fingerprint() + "|" + rev
		if s, ok := e.cache.Get(key); ok {
			e.logger.WithField("query", q.Key()).Debug("Series cache hit")
			return s, nil
		}
	}

	t := newTally(q)
	if err := e.scan(ctx, q, t); err != nil {
		return nil, err
	}
	if q.Unit == Changes && t.any && !t.anyKnown {
		return nil, errors.ConfigError("unit changes: none of the selected commits has a known line count")
	}

	series := e.build(q, t)

	e.logger.WithFields(logrus.Fields{
		"cohort":   q.Cohort,
		"interval": q.Interval,
		"unit":     q.Unit,
		"cohorts":  len(series.Cohorts),
		"buckets":  len(series.Buckets),
	}).Debug("Aggregated series")

	if e.cache != nil {
		if err := e.cache.Put(key, series); err != nil {
			e.logger.WithError(err).Warn("Failed to cache series")
		}
	}
	return series, nil
}

// checkFileData rejects queries that need line counts when the store cannot have any
func (e *Engine) checkFileData(ctx context.Context, q Query) error {
	if !q.needsFileData() {
		return nil
	}
	repos, err := e.store.Repositories(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return nil
	}

	full := 0
	for _, r := range repos {
		if !r.MetadataOnly {
			full++
		}
	}
	if full == 0 {
		what := "unit " + string(q.Unit)
		if q.Unit != Changes {
			what = "cohort " + string(q.Cohort)
		}
		return errors.ConfigErrorf("%s needs line counts, but all %d repositories were ingested without file content", what, len(repos))
	}

	if q.Unit == Changes {
		known, err := e.store.KnownChanges(ctx)
		if err != nil {
			return err
		}
		if known == 0 {
			return errors.ConfigError("unit changes: the store has no known line counts")
		}
	}
	return nil
}

func (e *Engine) scan(ctx context.Context, q Query, t *tally) error {
	switch q.Cohort {
	case Prefix, Suffix:
		return e.scanFiles(ctx, q, t)
	}

	var authors map[string]*models.AuthorSummary
	if q.Cohort == FirstYear {
		list, err := e.store.Authors(ctx)
		if err != nil {
			return err
		}
		authors = make(map[string]*models.AuthorSummary, len(list))
		for _, a := range list {
			authors[a.AuthorName] = a
		}
	}

	hidden := 0
	err := e.store.EachCommit(ctx, func(c *models.RawCommit) error {
		var label string
		switch q.Cohort {
		case FirstYear:
			a, ok := authors[c.AuthorName]
			if !ok {
				return errors.InternalErrorf("author %q has commits but no summary; run rebuild", c.AuthorName)
			}
			label = firstYearLabel(a, q.BriefDays)
		case Domain:
			var show bool
			label, show = e.domainLabel(q, c)
			if !show {
				hidden++
				return nil
			}
		case Repo:
			label = e.repoLabel(c.RepoID)
		}
		t.add(label, c.AuthorName, c.AuthorTime, c.NChanges)
		return nil
	})
	if err != nil {
		return err
	}
	if hidden > 0 {
		e.logger.WithField("commits", hidden).Debug("Skipped commits of hidden domains")
	}
	return nil
}

// scanFiles labels commits by the directories or suffixes of the files they changed.
// A commit counts once per label no matter how many of its files share it.
func (e *Engine) scanFiles(ctx context.Context, q Query, t *tally) error {
	type commitKey struct{ repo, id string }
	var (
		cur     commitKey
		author  string
		at      int64
		pending = make(map[string]int64)
	)
	flush := func() {
		labels := make([]string, 0, len(pending))
		for l := range pending {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			t.add(l, author, at, sql.NullInt64{Int64: pending[l], Valid: true})
		}
		clear(pending)
	}

	err := e.store.EachFileActivity(ctx, func(f *models.FileActivity) error {
		k := commitKey{f.RepoID, f.ID}
		if k != cur {
			flush()
			cur, author, at = k, f.AuthorName, f.AuthorTime
		}
		label := f.Suffix
		if q.Cohort == Prefix {
			label = f.Prefix
		}
		pending[label] += f.NChanges
		return nil
	})
	if err != nil {
		return err
	}
	flush()
	return nil
}

// build resolves the year range, folds small cohorts and lays out the dense rows
func (e *Engine) build(q Query, t *tally) *Series {
	from, to := q.FromYear, q.ToYear
	metaFirst, metaLast := e.project.Years()
	dataFirst, dataLast := t.dataYears()
	if from == 0 {
		from = firstNonZero(metaFirst, dataFirst)
	}
	if to == 0 {
		to = firstNonZero(metaLast, dataLast)
	}

	g := newGrid(from, to, q.Interval)
	series := &Series{Query: q, Buckets: g.buckets}
	if len(g.buckets) == 0 {
		return series
	}

	var cohorts []string
	for _, c := range t.cohorts() {
		if _, _, ok := t.cells(c, g); ok {
			cohorts = append(cohorts, c)
		}
	}

	if q.MaxCohorts > 0 && len(cohorts) > q.MaxCohorts {
		cohorts = e.foldSmallest(q, t, g, cohorts)
	}
	sortCohorts(cohorts, q.Cohort)

	series.Cohorts = cohorts
	series.Rows = make([]Row, 0, len(cohorts)*len(g.buckets))
	for _, c := range cohorts {
		values, valid, _ := t.cells(c, g)
		for i, b := range g.buckets {
			series.Rows = append(series.Rows, Row{Cohort: c, Bucket: b, Value: values[i], Valid: valid[i]})
		}
	}
	return series
}

// foldSmallest keeps the MaxCohorts largest cohorts and merges the rest into "other"
func (e *Engine) foldSmallest(q Query, t *tally, g grid, cohorts []string) []string {
	totals := make(map[string]int64, len(cohorts))
	for _, c := range cohorts {
		totals[c] = t.total(c, g)
	}
	ranked := append([]string(nil), cohorts...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if totals[ranked[i]] != totals[ranked[j]] {
			return totals[ranked[i]] > totals[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	kept := ranked[:q.MaxCohorts]
	rename := make(map[string]string)
	for _, c := range ranked[q.MaxCohorts:] {
		rename[c] = OtherCohort
	}
	t.fold(rename)

	e.logger.WithFields(logrus.Fields{
		"kept":   len(kept),
		"folded": len(rename),
	}).Debug("Folded small cohorts")

	out := append([]string(nil), kept...)
	for _, c := range kept {
		if c == OtherCohort {
			return out
		}
	}
	return append(out, OtherCohort)
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
