package models

import (
	"database/sql"
	"time"
)

// Record is one commit as produced by a commit source. It is not persisted directly.
type Record struct {
	ID            string
	AuthorName    string
	AuthorEmail   string
	AuthorTime    time.Time
	CommitterTime time.Time
	// LinesChanged is insertions plus deletions; nil when the repository has no file content.
	LinesChanged *int64
	// Files lists per-path line counts when LinesChanged is known
	Files []FileChange
}

// FileChange is the line count of one path touched by a commit
type FileChange struct {
	Path  string
	Lines int64
}

// RawCommit is one row of raw_commits
type RawCommit struct {
	ID            string        `json:"id" db:"id"`
	RepoID        string        `json:"repo_id" db:"repo_id"`
	AuthorName    string        `json:"author_name" db:"author_name"`
	AuthorEmail   string        `json:"author_email" db:"author_email"`
	AuthorDomain  string        `json:"author_domain" db:"author_domain"`
	AuthorTime    int64         `json:"author_time" db:"author_time"`
	AuthorYear    int           `json:"author_year" db:"author_year"`
	CommitterTime int64         `json:"committer_time" db:"committer_time"`
	NChanges      sql.NullInt64 `json:"n_changes" db:"n_changes"`
}

// CommitFile is one row of commit_files: the lines a commit changed under one
// (top-level directory, file suffix) pair
type CommitFile struct {
	RepoID   string `json:"repo_id" db:"repo_id"`
	ID       string `json:"id" db:"id"`
	Prefix   string `json:"prefix" db:"prefix"`
	Suffix   string `json:"suffix" db:"suffix"`
	NChanges int64  `json:"n_changes" db:"n_changes"`
}

// FileActivity joins a commit_files row with the author and time of its commit
type FileActivity struct {
	CommitFile
	AuthorName string `json:"author_name" db:"author_name"`
	AuthorTime int64  `json:"author_time" db:"author_time"`
}

// AuthorSummary is one row of authors, derived from raw_commits
type AuthorSummary struct {
	AuthorName string        `json:"author_name" db:"author_name"`
	FirstTime  int64         `json:"first_time" db:"first_time"`
	FirstYear  int           `json:"first_year" db:"first_year"`
	LastTime   int64         `json:"last_time" db:"last_time"`
	LastYear   int           `json:"last_year" db:"last_year"`
	ActiveTime int64         `json:"active_time" db:"active_time"`
	NCommits   int64         `json:"n_commits" db:"n_commits"`
	NChanges   sql.NullInt64 `json:"n_changes" db:"n_changes"`
}

// Repository tracks the last ingestion of one repository
type Repository struct {
	RepoID       string    `json:"repo_id" db:"repo_id"`
	Path         string    `json:"path" db:"path"`
	Head         string    `json:"head" db:"head"`
	MetadataOnly bool      `json:"metadata_only" db:"metadata_only"`
	LastIngested time.Time `json:"last_ingested" db:"last_ingested"`
	NCommits     int64     `json:"n_commits" db:"n_commits"`
}

// IngestRun records one invocation of ingest
type IngestRun struct {
	RunID           string     `json:"run_id" db:"run_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	ReposOK         int        `json:"repos_ok" db:"repos_ok"`
	ReposFailed     int        `json:"repos_failed" db:"repos_failed"`
	RecordsRejected int        `json:"records_rejected" db:"records_rejected"`
}
