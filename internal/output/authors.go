package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rohankatakam/gitcohort/internal/models"
)

// WriteAuthors prints author summaries as an aligned table
func WriteAuthors(w io.Writer, authors []*models.AuthorSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AUTHOR\tFIRST\tLAST\tACTIVE\tCOMMITS\tCHANGES")
	for _, a := range authors {
		changes := "unknown"
		if a.NChanges.Valid {
			changes = humanize.Comma(a.NChanges.Int64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.AuthorName,
			day(a.FirstTime),
			day(a.LastTime),
			activeSpan(a.ActiveTime),
			humanize.Comma(a.NCommits),
			changes,
		)
	}
	return tw.Flush()
}

func day(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}

// activeSpan renders seconds as whole days, or years and days past a year
func activeSpan(seconds int64) string {
	days := seconds / (24 * 60 * 60)
	if days < 365 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dy%dd", days/365, days%365)
}
