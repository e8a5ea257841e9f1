package ingestion

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/rohankatakam/gitcohort/internal/models"
)

// RepoResult is the outcome of one repository in a run
type RepoResult struct {
	RepoID       string
	Path         string
	Skipped      bool
	MetadataOnly bool
	Records      int
	Inserted     int
	Duplicates   int
	Rejected     []error
	Duration     time.Duration
	// Err is the Source Error that made the run skip this repository
	Err error
}

// Report summarizes an ingestion run
type Report struct {
	Run   *models.IngestRun
	Repos []*RepoResult
}

func newReport(run *models.IngestRun, repos []*RepoResult) *Report {
	return &Report{Run: run, Repos: repos}
}

func (r *Report) Succeeded() int {
	n := 0
	for _, repo := range r.Repos {
		if repo.Err == nil {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Repos) - r.Succeeded()
}

func (r *Report) Rejected() int {
	n := 0
	for _, repo := range r.Repos {
		n += len(repo.Rejected)
	}
	return n
}

func (r *Report) Inserted() int {
	n := 0
	for _, repo := range r.Repos {
		n += repo.Inserted
	}
	return n
}

// RepoErrors combines the Source Errors of skipped repositories, or returns nil
func (r *Report) RepoErrors() error {
	var result *multierror.Error
	for _, repo := range r.Repos {
		if repo.Err != nil {
			result = multierror.Append(result, repo.Err)
		}
	}
	return result.ErrorOrNil()
}

// RecordErrors combines every rejected record of the run, or returns nil
func (r *Report) RecordErrors() error {
	var result *multierror.Error
	for _, repo := range r.Repos {
		result = multierror.Append(result, repo.Rejected...)
	}
	return result.ErrorOrNil()
}

// Write prints the operator summary: one line per repository, then every problem
func (r *Report) Write(w io.Writer) {
	for _, repo := range r.Repos {
		name := repo.RepoID
		if name == "" {
			name = repo.Path
		}
		switch {
		case repo.Err != nil:
			fmt.Fprintf(w, "%-24s FAILED\n", name)
		case repo.Skipped:
			fmt.Fprintf(w, "%-24s unchanged\n", name)
		default:
			mode := ""
			if repo.MetadataOnly {
				mode = " (metadata only)"
			}
			fmt.Fprintf(w, "%-24s %s commits, %s new%s\n",
				name, humanize.Comma(int64(repo.Records)), humanize.Comma(int64(repo.Inserted)), mode)
		}
	}

	if err := r.RepoErrors(); err != nil {
		fmt.Fprintf(w, "\n%d repositories skipped: %v", r.Failed(), err)
	}
	if err := r.RecordErrors(); err != nil {
		fmt.Fprintf(w, "\n%d records rejected: %v", r.Rejected(), err)
	}
}
