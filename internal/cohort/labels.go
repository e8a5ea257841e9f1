package cohort

import (
	"sort"
	"strconv"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/rohankatakam/gitcohort/internal/models"
)

const secondsPerDay = 24 * 60 * 60

// firstYearLabel names the cohort of an author by the year of their first commit
func firstYearLabel(a *models.AuthorSummary, briefDays int) string {
	if briefDays > 0 && a.ActiveTime <= int64(briefDays)*secondsPerDay {
		return BriefCohort
	}
	return strconv.Itoa(a.FirstYear)
}

// domainLabel names the cohort of a commit by its author's email domain. Metadata
// patterns win over the stored domain; hidden domains report ok=false.
func (e *Engine) domainLabel(q Query, c *models.RawCommit) (label string, ok bool) {
	at := time.Unix(c.AuthorTime, 0).UTC()
	label = e.project.Domain(c.AuthorEmail, c.AuthorDomain, at)
	if label == c.AuthorDomain {
		switch {
		case label == "":
			label = UnknownCohort
		case q.Registrable:
			label = registrable(label)
		}
	}
	return label, !e.project.Hidden(label)
}

// registrable returns the registrable part of a domain (gnome.org for
// mail.gnome.org, example.co.uk for www.example.co.uk), or the domain itself when the
// public suffix list has no answer for it.
func registrable(domain string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return d
}

func (e *Engine) repoLabel(repoID string) string {
	if label, ok := e.project.RepoCohort(repoID); ok {
		return label
	}
	return repoID
}

// sortCohorts orders first-year cohorts by year and everything else by name, with the
// reserved labels last.
func sortCohorts(labels []string, strategy Strategy) {
	rank := func(l string) int {
		switch l {
		case BriefCohort:
			return 1
		case UnknownCohort:
			return 2
		case OtherCohort:
			return 3
		}
		return 0
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := labels[i], labels[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if strategy == FirstYear {
			ya, errA := strconv.Atoi(a)
			yb, errB := strconv.Atoi(b)
			if errA == nil && errB == nil {
				return ya < yb
			}
		}
		return a < b
	})
}
