// Package cohort turns the commit store into time-bucketed series, one per cohort.
package cohort

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/gitcohort/internal/errors"
)

// Strategy decides which cohort a commit or author belongs to
type Strategy string

const (
	FirstYear Strategy = "firstyear"
	Domain    Strategy = "domain"
	Repo      Strategy = "repo"
	Prefix    Strategy = "prefix"
	Suffix    Strategy = "suffix"
)

// Interval is the bucket granularity
type Interval string

const (
	Year  Interval = "year"
	Month Interval = "month"
)

// Unit is the measured quantity
type Unit string

const (
	Authors Unit = "authors"
	Commits Unit = "commits"
	Changes Unit = "changes"
)

// Reserved cohort labels
const (
	UnknownCohort = "unknown"
	OtherCohort   = "other"
	BriefCohort   = "Brief"
)

var (
	strategies = []Strategy{FirstYear, Domain, Repo, Prefix, Suffix}
	intervals  = []Interval{Year, Month}
	units      = []Unit{Authors, Commits, Changes}
)

func ParseStrategy(s string) (Strategy, error) {
	for _, v := range strategies {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", errors.ConfigErrorf("unknown cohort %q (want one of %s)", s, joinValues(strategies))
}

func ParseInterval(s string) (Interval, error) {
	for _, v := range intervals {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", errors.ConfigErrorf("unknown interval %q (want one of %s)", s, joinValues(intervals))
}

func ParseUnit(s string) (Unit, error) {
	for _, v := range units {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", errors.ConfigErrorf("unknown unit %q (want one of %s)", s, joinValues(units))
}

func joinValues[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Query selects one histogram
type Query struct {
	Cohort   Strategy
	Interval Interval
	Unit     Unit

	// FromYear and ToYear bound the buckets, inclusive; zero falls back to the
	// metadata years and then to the years present in the data.
	FromYear int
	ToYear   int

	// BriefDays > 0 moves firstyear authors active for at most that many days into
	// the Brief cohort.
	BriefDays int
	// MaxCohorts > 0 keeps the largest cohorts and folds the rest into "other".
	MaxCohorts int
	// Registrable collapses domain cohorts to the registrable domain using the public
	// suffix list, so mail.gnome.org and git.gnome.org count as gnome.org.
	Registrable bool
}

// Validate reports unknown enum values and inconsistent bounds as configuration errors
func (q Query) Validate() error {
	if _, err := ParseStrategy(string(q.Cohort)); err != nil {
		return err
	}
	if _, err := ParseInterval(string(q.Interval)); err != nil {
		return err
	}
	if _, err := ParseUnit(string(q.Unit)); err != nil {
		return err
	}
	if q.FromYear != 0 && q.ToYear != 0 && q.FromYear > q.ToYear {
		return errors.ConfigErrorf("--from %d is after --to %d", q.FromYear, q.ToYear)
	}
	if q.BriefDays < 0 || q.MaxCohorts < 0 {
		return errors.ConfigError("brief days and max cohorts must not be negative")
	}
	return nil
}

// needsFileData reports whether the query can only be answered from line counts
func (q Query) needsFileData() bool {
	return q.Unit == Changes || q.Cohort == Prefix || q.Cohort == Suffix
}

// Key identifies the query for caching
func (q Query) Key() string {
	return fmt.Sprintf("%s/%s/%s/%d-%d/brief=%d/max=%d/reg=%t",
		q.Cohort, q.Interval, q.Unit, q.FromYear, q.ToYear, q.BriefDays, q.MaxCohorts, q.Registrable)
}
