package cohort

import (
	"database/sql"
	"sort"
	"time"

	"github.com/rohankatakam/gitcohort/internal/models"
)

type span struct {
	first, last int64
}

func (s span) merge(o span) span {
	if o.first < s.first {
		s.first = o.first
	}
	if o.last > s.last {
		s.last = o.last
	}
	return s
}

// tally accumulates labelled commits before the bucket range is known. Counts are kept
// per bucket; author spans are kept per (cohort, author) so distinct authors can be
// counted for any range.
type tally struct {
	interval Interval
	unit     Unit

	counts map[string]map[models.YearMonth]int64
	known  map[string]map[models.YearMonth]bool
	spans  map[string]map[string]span

	// cohorts with at least one known change count; their idle buckets are zero
	reported map[string]bool

	minTime, maxTime int64
	any              bool
	anyKnown         bool
}

func newTally(q Query) *tally {
	return &tally{
		interval: q.Interval,
		unit:     q.Unit,
		counts:   make(map[string]map[models.YearMonth]int64),
		known:    make(map[string]map[models.YearMonth]bool),
		spans:    make(map[string]map[string]span),
		reported: make(map[string]bool),
	}
}

// add records one commit by author at the Unix time at under cohort
func (t *tally) add(cohort, author string, at int64, changes sql.NullInt64) {
	if !t.any || at < t.minTime {
		t.minTime = at
	}
	if !t.any || at > t.maxTime {
		t.maxTime = at
	}
	t.any = true

	if t.unit == Authors {
		spans := t.spans[cohort]
		if spans == nil {
			spans = make(map[string]span)
			t.spans[cohort] = spans
		}
		s, ok := spans[author]
		if !ok {
			s = span{first: at, last: at}
		}
		spans[author] = s.merge(span{first: at, last: at})
		return
	}

	b := bucketOf(time.Unix(at, 0), t.interval)
	counts := t.counts[cohort]
	if counts == nil {
		counts = make(map[models.YearMonth]int64)
		t.counts[cohort] = counts
		t.known[cohort] = make(map[models.YearMonth]bool)
	}

	switch t.unit {
	case Commits:
		counts[b]++
		t.known[cohort][b] = true
	case Changes:
		// Unknown counts still create the cell, so the cohort shows up with Valid=false.
		if _, ok := counts[b]; !ok {
			counts[b] = 0
		}
		if changes.Valid {
			counts[b] += changes.Int64
			t.known[cohort][b] = true
			t.reported[cohort] = true
			t.anyKnown = true
		}
	}
}

// dataYears returns the first and last year with any commit
func (t *tally) dataYears() (int, int) {
	if !t.any {
		return 0, 0
	}
	return time.Unix(t.minTime, 0).UTC().Year(), time.Unix(t.maxTime, 0).UTC().Year()
}

// grid maps buckets of the inclusive year range to row offsets
type grid struct {
	interval Interval
	from, to int
	buckets  []models.YearMonth
	begin    int64
	end      int64
}

func newGrid(from, to int, interval Interval) grid {
	g := grid{interval: interval, from: from, to: to, buckets: buckets(from, to, interval)}
	if len(g.buckets) > 0 {
		g.begin = g.buckets[0].Begin().Unix()
		g.end = g.buckets[len(g.buckets)-1].End().Unix()
	}
	return g
}

func (g grid) index(ym models.YearMonth) (int, bool) {
	if ym.Year < g.from || ym.Year > g.to {
		return 0, false
	}
	if g.interval == Month {
		return (ym.Year-g.from)*12 + ym.Month, true
	}
	return ym.Year - g.from, true
}

func (g grid) overlaps(s span) bool {
	return len(g.buckets) > 0 && s.last >= g.begin && s.first < g.end
}

// cells computes the dense values of one cohort, or ok=false when the cohort has
// nothing inside the grid
func (t *tally) cells(cohort string, g grid) (values []int64, valid []bool, ok bool) {
	values = make([]int64, len(g.buckets))
	valid = make([]bool, len(g.buckets))

	if t.unit == Authors {
		for i := range valid {
			valid[i] = true
		}
		for _, s := range t.spans[cohort] {
			if !g.overlaps(s) {
				continue
			}
			ok = true
			first := max(s.first, g.begin)
			last := min(s.last, g.end-1)
			lo, _ := g.index(bucketOf(time.Unix(first, 0), g.interval))
			hi, _ := g.index(bucketOf(time.Unix(last, 0), g.interval))
			for i := lo; i <= hi; i++ {
				values[i]++
			}
		}
		return values, valid, ok
	}

	if t.unit == Commits || t.reported[cohort] {
		for i := range valid {
			valid[i] = true
		}
	}
	for b, n := range t.counts[cohort] {
		i, in := g.index(b)
		if !in {
			continue
		}
		ok = true
		values[i] = n
		valid[i] = t.known[cohort][b]
	}
	return values, valid, ok
}

// total is the size used to rank cohorts: distinct authors, commits or known changes
// inside the grid
func (t *tally) total(cohort string, g grid) int64 {
	if t.unit == Authors {
		var n int64
		for _, s := range t.spans[cohort] {
			if g.overlaps(s) {
				n++
			}
		}
		return n
	}
	values, valid, _ := t.cells(cohort, g)
	var n int64
	for i, v := range values {
		if valid[i] {
			n += v
		}
	}
	return n
}

func (t *tally) cohorts() []string {
	var out []string
	if t.unit == Authors {
		for c := range t.spans {
			out = append(out, c)
		}
	} else {
		for c := range t.counts {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// fold merges every cohort in rename into its new label
func (t *tally) fold(rename map[string]string) {
	for from, to := range rename {
		if from == to {
			continue
		}
		if spans, ok := t.spans[from]; ok {
			dst := t.spans[to]
			if dst == nil {
				dst = make(map[string]span)
				t.spans[to] = dst
			}
			for author, s := range spans {
				if cur, ok := dst[author]; ok {
					s = cur.merge(s)
				}
				dst[author] = s
			}
			delete(t.spans, from)
		}
		if counts, ok := t.counts[from]; ok {
			dst := t.counts[to]
			if dst == nil {
				dst = make(map[models.YearMonth]int64)
				t.counts[to] = dst
				t.known[to] = make(map[models.YearMonth]bool)
			}
			for b, n := range counts {
				dst[b] += n
				if t.known[from][b] {
					t.known[to][b] = true
				}
			}
			if t.reported[from] {
				t.reported[to] = true
			}
			delete(t.counts, from)
			delete(t.known, from)
			delete(t.reported, from)
		}
	}
}
