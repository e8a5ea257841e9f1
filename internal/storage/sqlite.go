package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/identity"
	"github.com/rohankatakam/gitcohort/internal/models"
)

// Options tune record validation and identity
type Options struct {
	// MinYear rejects commits authored before it; the history of many old projects
	// has a handful of commits with clocks set to 1970.
	MinYear  int
	Resolver identity.Resolver
	// Now bounds author times from above; defaults to time.Now.
	Now func() time.Time
}

// SQLStore implements Store on SQLite (a file path) or PostgreSQL (a postgres:// DSN)
type SQLStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
	opts   Options

	// mu serializes writers. Readers go straight to the database.
	mu sync.Mutex
}

// Open connects to the store at dsn, creating the schema if needed
func Open(dsn string, opts Options, logger *logrus.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Resolver == nil {
		opts.Resolver = identity.NameResolver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	driver := "sqlite3"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	} else if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.StoreErrorf(err, "create database directory %s", dir)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.StoreErrorf(err, "connect to %s", driver)
	}

	if driver == "sqlite3" {
		// One connection: keeps :memory: databases shared and writes single-file.
		db.SetMaxOpenConns(1)
		applyPragmas(db, sqlitePragmas, logger)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store := &SQLStore{
		db:     db,
		logger: logger,
		opts:   opts,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.StoreError(err, "init schema")
	}

	return store, nil
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -16384",
}

// applyPragmas tunes a SQLite connection. Failures are logged and the store keeps
// working with SQLite's defaults.
func applyPragmas(db *sqlx.DB, pragmas []string, logger *logrus.Logger) {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("SQLite pragma failed")
		}
	}

	// Setting journal_mode reports no error when the mode cannot change.
	var mode string
	if err := db.Get(&mode, "PRAGMA journal_mode"); err != nil {
		logger.WithError(err).Warn("Could not read SQLite journal mode")
		return
	}
	if mode != "wal" && mode != "memory" {
		logger.WithField("journal_mode", mode).Warn("SQLite is not using write-ahead logging")
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS raw_commits (
		id TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		author_name TEXT NOT NULL,
		author_email TEXT NOT NULL,
		author_domain TEXT NOT NULL,
		author_time BIGINT NOT NULL,
		author_year INTEGER NOT NULL,
		committer_time BIGINT NOT NULL,
		n_changes BIGINT,
		PRIMARY KEY (repo_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_commits_author_name ON raw_commits(author_name)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_commits_author_domain ON raw_commits(author_domain)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_commits_author_time ON raw_commits(author_time)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_commits_author_year ON raw_commits(author_year)`,

	`CREATE TABLE IF NOT EXISTS commit_files (
		repo_id TEXT NOT NULL,
		id TEXT NOT NULL,
		prefix TEXT NOT NULL,
		suffix TEXT NOT NULL,
		n_changes BIGINT NOT NULL,
		PRIMARY KEY (repo_id, id, prefix, suffix)
	)`,

	`CREATE TABLE IF NOT EXISTS authors (
		author_name TEXT PRIMARY KEY,
		first_time BIGINT NOT NULL,
		first_year INTEGER NOT NULL,
		last_time BIGINT NOT NULL,
		last_year INTEGER NOT NULL,
		active_time BIGINT NOT NULL,
		n_commits BIGINT NOT NULL,
		n_changes BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_authors_first_time ON authors(first_time)`,
	`CREATE INDEX IF NOT EXISTS idx_authors_active_time ON authors(active_time)`,

	`CREATE TABLE IF NOT EXISTS repositories (
		repo_id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		head TEXT NOT NULL DEFAULT '',
		metadata_only BOOLEAN NOT NULL DEFAULT FALSE,
		last_ingested TIMESTAMP NOT NULL,
		n_commits BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		repos_ok INTEGER NOT NULL DEFAULT 0,
		repos_failed INTEGER NOT NULL DEFAULT 0,
		records_rejected INTEGER NOT NULL DEFAULT 0
	)`,
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Author(ctx context.Context, name string) (*models.AuthorSummary, error) {
	var a models.AuthorSummary
	err := s.db.GetContext(ctx, &a, s.db.Rebind(`SELECT * FROM authors WHERE author_name = ?`), name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.StoreErrorf(err, "get author %q", name)
	}
	return &a, nil
}

func (s *SQLStore) Authors(ctx context.Context) ([]*models.AuthorSummary, error) {
	var authors []*models.AuthorSummary
	if err := s.db.SelectContext(ctx, &authors, `SELECT * FROM authors ORDER BY author_name`); err != nil {
		return nil, errors.StoreError(err, "list authors")
	}
	return authors, nil
}

// AuthorNames lists every distinct author key present in raw_commits
func (s *SQLStore) AuthorNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `SELECT DISTINCT author_name FROM raw_commits ORDER BY author_name`)
	if err != nil {
		return nil, errors.StoreError(err, "list author names")
	}
	return names, nil
}

func (s *SQLStore) Commits(ctx context.Context, repoID string) ([]*models.RawCommit, error) {
	var commits []*models.RawCommit
	query := s.db.Rebind(`SELECT * FROM raw_commits WHERE repo_id = ? ORDER BY author_time, id`)
	if err := s.db.SelectContext(ctx, &commits, query, repoID); err != nil {
		return nil, errors.StoreErrorf(err, "list commits of %s", repoID)
	}
	return commits, nil
}

// EachCommit streams every raw commit to fn without loading the table into memory
func (s *SQLStore) EachCommit(ctx context.Context, fn func(*models.RawCommit) error) error {
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM raw_commits`)
	if err != nil {
		return errors.StoreError(err, "scan raw commits")
	}
	defer rows.Close()

	var c models.RawCommit
	for rows.Next() {
		c = models.RawCommit{}
		if err := rows.StructScan(&c); err != nil {
			return errors.StoreError(err, "read raw commit")
		}
		if err := fn(&c); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.StoreError(err, "scan raw commits")
	}
	return nil
}

// EachFileActivity streams commit_files rows joined with their commit's author and time,
// grouped by commit
func (s *SQLStore) EachFileActivity(ctx context.Context, fn func(*models.FileActivity) error) error {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT f.repo_id, f.id, f.prefix, f.suffix, f.n_changes, c.author_name, c.author_time
		FROM commit_files f
		JOIN raw_commits c ON c.repo_id = f.repo_id AND c.id = f.id
		ORDER BY f.repo_id, f.id`)
	if err != nil {
		return errors.StoreError(err, "scan commit files")
	}
	defer rows.Close()

	var a models.FileActivity
	for rows.Next() {
		a = models.FileActivity{}
		if err := rows.StructScan(&a); err != nil {
			return errors.StoreError(err, "read commit file")
		}
		if err := fn(&a); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.StoreError(err, "scan commit files")
	}
	return nil
}

// KnownChanges counts raw commits whose line count is known
func (s *SQLStore) KnownChanges(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(n_changes) FROM raw_commits`); err != nil {
		return 0, errors.StoreError(err, "count known changes")
	}
	return n, nil
}

func (s *SQLStore) Repository(ctx context.Context, repoID string) (*models.Repository, error) {
	var repo models.Repository
	err := s.db.GetContext(ctx, &repo, s.db.Rebind(`SELECT * FROM repositories WHERE repo_id = ?`), repoID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.StoreErrorf(err, "get repository %s", repoID)
	}
	return &repo, nil
}

func (s *SQLStore) Repositories(ctx context.Context) ([]*models.Repository, error) {
	var repos []*models.Repository
	if err := s.db.SelectContext(ctx, &repos, `SELECT * FROM repositories ORDER BY repo_id`); err != nil {
		return nil, errors.StoreError(err, "list repositories")
	}
	return repos, nil
}

// Revision fingerprints the store contents. The tables only grow, so row counts plus
// a time checksum change whenever an ingestion inserts anything.
func (s *SQLStore) Revision(ctx context.Context) (string, error) {
	var rev struct {
		Commits int64 `db:"n_commits"`
		TimeSum int64 `db:"time_sum"`
		Authors int64 `db:"n_authors"`
	}
	query := `SELECT
		(SELECT COUNT(*) FROM raw_commits) AS n_commits,
		(SELECT COALESCE(SUM(author_time), 0) FROM raw_commits) AS time_sum,
		(SELECT COUNT(*) FROM authors) AS n_authors`
	if err := s.db.GetContext(ctx, &rev, query); err != nil {
		return "", errors.StoreError(err, "read store revision")
	}
	return fmt.Sprintf("%d-%d-%d", rev.Commits, rev.TimeSum, rev.Authors), nil
}

// StartRun records the beginning of an ingest invocation
func (s *SQLStore) StartRun(ctx context.Context) (*models.IngestRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &models.IngestRun{
		RunID:     uuid.New().String(),
		StartedAt: s.opts.Now().UTC(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO ingest_runs (run_id, started_at, repos_ok, repos_failed, records_rejected)
		VALUES (:run_id, :started_at, 0, 0, 0)`, run)
	if err != nil {
		return nil, errors.StoreError(err, "start ingest run")
	}
	return run, nil
}

// FinishRun stores the counters of a completed ingest invocation
func (s *SQLStore) FinishRun(ctx context.Context, run *models.IngestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := s.opts.Now().UTC()
	run.FinishedAt = &finished
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE ingest_runs SET
			finished_at = :finished_at,
			repos_ok = :repos_ok,
			repos_failed = :repos_failed,
			records_rejected = :records_rejected
		WHERE run_id = :run_id`, run)
	if err != nil {
		return errors.StoreError(err, "finish ingest run")
	}
	return nil
}
