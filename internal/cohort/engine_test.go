package cohort

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/meta"
	"github.com/rohankatakam/gitcohort/internal/models"
	"github.com/rohankatakam/gitcohort/internal/storage"
)

func setupStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	logger, _ := test.NewNullLogger()
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := storage.Open(":memory:", storage.Options{MinYear: 1980, Now: func() time.Time { return now }}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ingest(t *testing.T, s storage.Store, repo string, metadataOnly bool, records ...models.Record) {
	t.Helper()
	_, err := s.Ingest(context.Background(), &models.Repository{RepoID: repo, MetadataOnly: metadataOnly}, records)
	require.NoError(t, err)
}

func commit(id, name, email string, at time.Time, lines int64, files ...models.FileChange) models.Record {
	return models.Record{
		ID:            id,
		AuthorName:    name,
		AuthorEmail:   email,
		AuthorTime:    at,
		CommitterTime: at,
		LinesChanged:  &lines,
		Files:         files,
	}
}

func on(y int, m time.Month) time.Time {
	return time.Date(y, m, 10, 12, 0, 0, 0, time.UTC)
}

func newEngine(s storage.Store, p *meta.Project) *Engine {
	logger, _ := test.NewNullLogger()
	return NewEngine(s, p, logger)
}

// values returns the series as cohort -> bucket values
func values(s *Series) map[string][]int64 {
	out := make(map[string][]int64)
	for i, c := range s.Cohorts {
		for b := range s.Buckets {
			out[c] = append(out[c], s.Cell(i, b).Value)
		}
	}
	return out
}

func aliceAndBob(t *testing.T, s storage.Store) {
	ingest(t, s, "widgets", false,
		commit("a1", "Alice", "a@x.com", on(2010, time.February), 10),
		commit("a2", "Alice", "a@x.com", on(2010, time.September), 5),
		commit("b1", "Bob", "b@y.org", on(2012, time.March), 7),
	)
}

func TestFirstYearAuthorsScenario(t *testing.T) {
	s := setupStore(t)
	aliceAndBob(t, s)

	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{
		Cohort: FirstYear, Interval: Year, Unit: Authors, FromYear: 2010, ToYear: 2012,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2010", "2012"}, series.Cohorts)
	assert.Equal(t, []models.YearMonth{{Year: 2010, Month: models.NoMonth}, {Year: 2011, Month: models.NoMonth}, {Year: 2012, Month: models.NoMonth}}, series.Buckets)
	assert.Equal(t, map[string][]int64{
		"2010": {1, 0, 0},
		"2012": {0, 0, 1},
	}, values(series))

	// Re-ingesting changes nothing.
	aliceAndBob(t, s)
	again, err := newEngine(s, nil).Aggregate(context.Background(), Query{
		Cohort: FirstYear, Interval: Year, Unit: Authors, FromYear: 2010, ToYear: 2012,
	})
	require.NoError(t, err)
	assert.Equal(t, series, again)
}

func TestAuthorsCountedOverActiveSpan(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "widgets", false,
		commit("c1", "Carol", "c@x.com", on(2010, time.June), 1),
		commit("c2", "Carol", "c@x.com", on(2013, time.June), 1),
	)

	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: FirstYear, Interval: Year, Unit: Authors})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int64{"2010": {1, 1, 1, 1}}, values(series))

	commits, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: FirstYear, Interval: Year, Unit: Commits})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int64{"2010": {1, 0, 0, 1}}, values(commits))
}

func TestSeriesIsDense(t *testing.T) {
	s := setupStore(t)
	aliceAndBob(t, s)

	for _, unit := range []Unit{Authors, Commits} {
		for _, interval := range []Interval{Year, Month} {
			series, err := newEngine(s, nil).Aggregate(context.Background(), Query{
				Cohort: Domain, Interval: interval, Unit: unit, FromYear: 2009, ToYear: 2013,
			})
			require.NoError(t, err)

			want := 5
			if interval == Month {
				want = 60
			}
			require.Len(t, series.Buckets, want)
			assert.Len(t, series.Rows, len(series.Cohorts)*want)
			for _, r := range series.Rows {
				assert.True(t, r.Valid)
			}
		}
	}
}

func TestMonthInterval(t *testing.T) {
	s := setupStore(t)
	aliceAndBob(t, s)

	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{
		Cohort: FirstYear, Interval: Month, Unit: Authors, FromYear: 2010, ToYear: 2010,
	})
	require.NoError(t, err)
	require.Len(t, series.Buckets, 12)
	assert.Equal(t, models.YearMonth{Year: 2010, Month: 0}, series.Buckets[0])
	assert.Equal(t, []int64{0, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0}, values(series)["2010"])
}

func TestChangesUnknownIsNotZero(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "full", false,
		commit("f1", "Alice", "a@x.com", on(2010, time.May), 4),
		commit("f2", "Alice", "a@x.com", on(2012, time.May), 6))
	ingest(t, s, "partial", true, commit("p1", "Bob", "b@y.org", on(2011, time.May), 9))

	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: Repo, Interval: Year, Unit: Changes})
	require.NoError(t, err)
	require.Equal(t, []string{"full", "partial"}, series.Cohorts)

	require.Len(t, series.Buckets, 3)
	assert.Equal(t, Row{Cohort: "full", Bucket: models.YearMonth{Year: 2010, Month: models.NoMonth}, Value: 4, Valid: true}, series.Cell(0, 0))
	assert.Equal(t, Row{Cohort: "full", Bucket: models.YearMonth{Year: 2011, Month: models.NoMonth}, Value: 0, Valid: true}, series.Cell(0, 1))
	assert.Equal(t, Row{Cohort: "full", Bucket: models.YearMonth{Year: 2012, Month: models.NoMonth}, Value: 6, Valid: true}, series.Cell(0, 2))

	for b := range series.Buckets {
		assert.False(t, series.Cell(1, b).Valid)
	}

	sum, ok := series.Sum(1)
	assert.True(t, ok)
	assert.Zero(t, sum, "the partial repository adds nothing to the 2011 total")
}

func TestChangesRejectedForMetadataOnlyStore(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "partial", true, commit("p1", "Bob", "b@y.org", on(2011, time.May), 9))

	_, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: FirstYear, Interval: Year, Unit: Changes})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: Suffix, Interval: Year, Unit: Commits})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: FirstYear, Interval: Year, Unit: Commits})
	assert.NoError(t, err)
}

func TestDomainCohorts(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "widgets", false,
		commit("n1", "Nobody", "root-at-localhost", on(2015, time.July), 1),
		commit("m1", "Mia", "mia@mail.gnome.org", on(2015, time.July), 1),
		commit("g1", "Gil", "gil@git.gnome.org", on(2015, time.July), 1),
		commit("u1", "Una", "una@example.co.uk", on(2015, time.July), 1),
	)

	q := Query{Cohort: Domain, Interval: Year, Unit: Commits}
	plain, err := newEngine(s, nil).Aggregate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.co.uk", "git.gnome.org", "mail.gnome.org", UnknownCohort}, plain.Cohorts)

	q.Registrable = true
	collapsed, err := newEngine(s, nil).Aggregate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int64{
		"example.co.uk": {1},
		"gnome.org":     {2},
		UnknownCohort:   {1},
	}, values(collapsed))
}

func TestMetadataOverrides(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "gtk", false,
		commit("h1", "Hans", "hans@gnome.org", on(2002, time.March), 1),
		commit("h2", "Hans", "hans@gnome.org", on(2008, time.March), 1),
		commit("b1", "Bot", "bot@users.noreply.github.com", on(2002, time.March), 1),
	)
	ingest(t, s, "nautilus", false, commit("n1", "Nia", "nia@suse.de", on(2003, time.March), 1))

	project, err := meta.Parse([]byte(`
first_year: 2001
last_year: 2008
domains:
  - name: ximian.com
    aggregate_emails:
      - {pattern: "*@gnome.org", end: 2005}
  - name: users.noreply.github.com
    show: false
repos:
  - {pattern: "gtk*", cohort: toolkit}
`))
	require.NoError(t, err)

	domains, err := newEngine(s, project).Aggregate(context.Background(), Query{Cohort: Domain, Interval: Year, Unit: Commits})
	require.NoError(t, err)
	require.Len(t, domains.Buckets, 8, "range comes from the metadata years")
	assert.Equal(t, []string{"gnome.org", "suse.de", "ximian.com"}, domains.Cohorts)
	v := values(domains)
	assert.Equal(t, int64(1), v["ximian.com"][1])
	assert.Equal(t, int64(1), v["gnome.org"][7])

	repos, err := newEngine(s, project).Aggregate(context.Background(), Query{Cohort: Repo, Interval: Year, Unit: Commits})
	require.NoError(t, err)
	assert.Equal(t, []string{"nautilus", "toolkit"}, repos.Cohorts)
}

func TestBriefCohort(t *testing.T) {
	s := setupStore(t)
	aliceAndBob(t, s)

	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{
		Cohort: FirstYear, Interval: Year, Unit: Commits, BriefDays: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2010", BriefCohort}, series.Cohorts)
	assert.Equal(t, map[string][]int64{
		"2010":      {2, 0, 0},
		BriefCohort: {0, 0, 1},
	}, values(series))
}

func TestMaxCohortsFoldsIntoOther(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "big", false,
		commit("b1", "A", "a@x", on(2010, time.January), 1),
		commit("b2", "B", "b@x", on(2010, time.January), 1),
		commit("b3", "C", "c@x", on(2010, time.January), 1),
	)
	ingest(t, s, "mid", false,
		commit("m1", "A", "a@x", on(2010, time.January), 1),
		commit("m2", "D", "d@x", on(2010, time.January), 1),
	)
	ingest(t, s, "small", false, commit("s1", "A", "a@x", on(2010, time.January), 1))

	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{
		Cohort: Repo, Interval: Year, Unit: Authors, MaxCohorts: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"big", OtherCohort}, series.Cohorts)
	// A is in both folded repositories but is one author of "other".
	assert.Equal(t, map[string][]int64{"big": {3}, OtherCohort: {2}}, values(series))
}

func TestFileCohorts(t *testing.T) {
	s := setupStore(t)
	ingest(t, s, "widgets", false,
		commit("a1", "Alice", "a@x.com", on(2010, time.February), 17,
			models.FileChange{Path: "src/main.c", Lines: 10},
			models.FileChange{Path: "lib/util.c", Lines: 5},
			models.FileChange{Path: "README", Lines: 2}),
		commit("b1", "Bob", "b@y.org", on(2011, time.March), 3,
			models.FileChange{Path: "src/main.go", Lines: 3}),
	)

	suffixes, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: Suffix, Interval: Year, Unit: Commits})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int64{
		"README": {1, 0},
		"c":      {1, 0},
		"go":     {0, 1},
	}, values(suffixes))

	changes, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: Suffix, Interval: Year, Unit: Changes})
	require.NoError(t, err)
	assert.Equal(t, int64(15), changes.Cell(1, 0).Value)

	prefixes, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: Prefix, Interval: Year, Unit: Authors})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int64{
		"(root)": {1, 0},
		"lib":    {1, 0},
		"src":    {1, 1},
	}, values(prefixes))
}

func TestInvalidQuery(t *testing.T) {
	s := setupStore(t)
	tests := []Query{
		{Cohort: "color", Interval: Year, Unit: Authors},
		{Cohort: FirstYear, Interval: "week", Unit: Authors},
		{Cohort: FirstYear, Interval: Year, Unit: "bytes"},
		{Cohort: FirstYear, Interval: Year, Unit: Authors, FromYear: 2012, ToYear: 2010},
		{Cohort: FirstYear, Interval: Year, Unit: Authors, MaxCohorts: -1},
	}
	for _, q := range tests {
		_, err := newEngine(s, nil).Aggregate(context.Background(), q)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), q.Key())
	}
}

func TestEmptyStore(t *testing.T) {
	s := setupStore(t)
	series, err := newEngine(s, nil).Aggregate(context.Background(), Query{Cohort: FirstYear, Interval: Year, Unit: Changes})
	require.NoError(t, err)
	assert.True(t, series.Empty())
}

type mapCache map[string]*Series

func (m mapCache) Get(key string) (*Series, bool) {
	s, ok := m[key]
	return s, ok
}

func (m mapCache) Put(key string, s *Series) error {
	m[key] = s
	return nil
}

func TestEngineUsesCache(t *testing.T) {
	s := setupStore(t)
	aliceAndBob(t, s)
	cache := mapCache{}
	engine := newEngine(s, nil).WithCache(cache)
	q := Query{Cohort: FirstYear, Interval: Year, Unit: Commits}

	first, err := engine.Aggregate(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, cache, 1)

	second, err := engine.Aggregate(context.Background(), q)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// New commits change the store revision and so the key.
	ingest(t, s, "widgets", false, commit("c1", "Carol", "c@z.net", on(2012, time.May), 1))
	third, err := engine.Aggregate(context.Background(), q)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Len(t, cache, 2)
}

func TestParseEnums(t *testing.T) {
	c, err := ParseStrategy("FirstYear")
	require.NoError(t, err)
	assert.Equal(t, FirstYear, c)

	_, err = ParseUnit("lines")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
