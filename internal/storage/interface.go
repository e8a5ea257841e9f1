package storage

import (
	"context"
	"errors"

	"github.com/rohankatakam/gitcohort/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// IngestResult summarizes the merge of one repository's records
type IngestResult struct {
	RepoID         string
	Inserted       int
	Duplicates     int
	AuthorsUpdated int
	// Rejected holds one Record Error per malformed record
	Rejected []error
}

// Store is the commit store: raw_commits is the source of truth, authors is derived
// from it, commit_files holds per-path line counts of full repositories, repositories
// and ingest_runs are bookkeeping.
type Store interface {
	// Ingest merges the records of one repository. Existing rows are left untouched and
	// every author with a newly inserted row is recomputed before the call returns.
	Ingest(ctx context.Context, repo *models.Repository, records []models.Record) (*IngestResult, error)

	// Author summary maintenance
	Recompute(ctx context.Context, author string) error
	RebuildAll(ctx context.Context) (int, error)

	// Reads
	Author(ctx context.Context, name string) (*models.AuthorSummary, error)
	Authors(ctx context.Context) ([]*models.AuthorSummary, error)
	AuthorNames(ctx context.Context) ([]string, error)
	Commits(ctx context.Context, repoID string) ([]*models.RawCommit, error)
	EachCommit(ctx context.Context, fn func(*models.RawCommit) error) error
	EachFileActivity(ctx context.Context, fn func(*models.FileActivity) error) error
	KnownChanges(ctx context.Context) (int64, error)
	Repository(ctx context.Context, repoID string) (*models.Repository, error)
	Repositories(ctx context.Context) ([]*models.Repository, error)
	Revision(ctx context.Context) (string, error)

	// Run bookkeeping
	StartRun(ctx context.Context) (*models.IngestRun, error)
	FinishRun(ctx context.Context, run *models.IngestRun) error

	Close() error
}
