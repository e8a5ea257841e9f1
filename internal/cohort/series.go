package cohort

import (
	"time"

	"github.com/rohankatakam/gitcohort/internal/models"
)

// Row is the value of one cohort in one bucket. Valid is false for a changes cell with
// no known line counts, which is different from a known zero.
type Row struct {
	Cohort string           `json:"cohort"`
	Bucket models.YearMonth `json:"bucket"`
	Value  int64            `json:"value"`
	Valid  bool             `json:"valid"`
}

// Timestamp is the start of the bucket
func (r Row) Timestamp() time.Time {
	return r.Bucket.Begin()
}

// Series is a dense histogram: one row for every (cohort, bucket) pair, cohort-major.
type Series struct {
	Query   Query              `json:"query"`
	Cohorts []string           `json:"cohorts"`
	Buckets []models.YearMonth `json:"buckets"`
	Rows    []Row              `json:"rows"`
}

// Cell returns the row of cohort c in bucket b
func (s *Series) Cell(c int, b int) Row {
	return s.Rows[c*len(s.Buckets)+b]
}

// Sum adds the known values of every cohort in bucket b. ok is false when no cohort has
// a known value there.
func (s *Series) Sum(b int) (sum int64, ok bool) {
	for c := range s.Cohorts {
		r := s.Cell(c, b)
		if r.Valid {
			sum += r.Value
			ok = true
		}
	}
	return sum, ok
}

// Empty reports whether the series has no cells
func (s *Series) Empty() bool {
	return len(s.Rows) == 0
}

// buckets lists every bucket from the first to the last year, inclusive
func buckets(from, to int, interval Interval) []models.YearMonth {
	if from == 0 || to < from {
		return nil
	}
	first := models.YearMonth{Year: from, Month: models.NoMonth}
	if interval == Month {
		first.Month = 0
	}
	var out []models.YearMonth
	for ym := first; ym.Year <= to; ym = ym.Next() {
		out = append(out, ym)
	}
	return out
}

func bucketOf(t time.Time, interval Interval) models.YearMonth {
	if interval == Month {
		return models.MonthOf(t)
	}
	return models.YearOf(t)
}
