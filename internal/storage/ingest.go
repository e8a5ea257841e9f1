package storage

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/identity"
	"github.com/rohankatakam/gitcohort/internal/models"
)

const insertRawCommit = `
	INSERT INTO raw_commits
		(id, repo_id, author_name, author_email, author_domain,
		 author_time, author_year, committer_time, n_changes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (repo_id, id) DO NOTHING`

const insertCommitFile = `
	INSERT INTO commit_files (repo_id, id, prefix, suffix, n_changes)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (repo_id, id, prefix, suffix) DO NOTHING`

const upsertRepository = `
	INSERT INTO repositories (repo_id, path, head, metadata_only, last_ingested, n_commits)
	VALUES (:repo_id, :path, :head, :metadata_only, :last_ingested, :n_commits)
	ON CONFLICT (repo_id) DO UPDATE SET
		path = EXCLUDED.path,
		head = EXCLUDED.head,
		metadata_only = EXCLUDED.metadata_only,
		last_ingested = EXCLUDED.last_ingested,
		n_commits = EXCLUDED.n_commits`

// RowID returns the key of a record within its repository: the commit id when the
// source has one, otherwise a digest of the fields that identify an authored commit.
func RowID(rec models.Record) string {
	if rec.ID != "" {
		return rec.ID
	}
	h := sha1.New()
	for _, part := range []string{
		rec.AuthorName,
		rec.AuthorEmail,
		strconv.FormatInt(rec.AuthorTime.Unix(), 10),
		strconv.FormatInt(rec.CommitterTime.Unix(), 10),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// groupFiles sums line counts per (top-level directory, suffix) pair
func groupFiles(files []models.FileChange) []models.CommitFile {
	type key struct{ prefix, suffix string }
	sums := make(map[key]int64)
	var order []key
	for _, f := range files {
		k := key{identity.PathPrefix(f.Path), identity.PathSuffix(f.Path)}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += f.Lines
	}
	out := make([]models.CommitFile, 0, len(order))
	for _, k := range order {
		out = append(out, models.CommitFile{Prefix: k.prefix, Suffix: k.suffix, NChanges: sums[k]})
	}
	return out
}

// ValidateRecord rejects records without an author or with an implausible author time
func ValidateRecord(rec models.Record, opts Options) error {
	if strings.TrimSpace(rec.AuthorName) == "" {
		return errors.RecordErrorf("commit %s has no author name", rec.ID).WithContext("id", rec.ID)
	}
	if rec.AuthorTime.IsZero() {
		return errors.RecordErrorf("commit %s has no author time", rec.ID).WithContext("id", rec.ID)
	}

	year := rec.AuthorTime.UTC().Year()
	if opts.MinYear > 0 && year < opts.MinYear {
		return errors.RecordErrorf("commit %s authored in %d, before %d", rec.ID, year, opts.MinYear).
			WithContext("id", rec.ID)
	}
	if opts.Now != nil && rec.AuthorTime.After(opts.Now().AddDate(0, 0, 1)) {
		return errors.RecordErrorf("commit %s authored in the future (%s)", rec.ID, rec.AuthorTime.UTC().Format("2006-01-02")).
			WithContext("id", rec.ID)
	}
	return nil
}

// Ingest merges records into raw_commits inside one transaction per repository.
// Rows already present for (repo_id, id) are left as they are; commits are immutable.
func (s *SQLStore) Ingest(ctx context.Context, repo *models.Repository, records []models.Record) (*IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &IngestResult{RepoID: repo.RepoID}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.StoreError(err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertRawCommit))
	if err != nil {
		return nil, errors.StoreError(err, "prepare insert")
	}
	defer stmt.Close()

	fileStmt, err := tx.PreparexContext(ctx, tx.Rebind(insertCommitFile))
	if err != nil {
		return nil, errors.StoreError(err, "prepare file insert")
	}
	defer fileStmt.Close()

	touched := make(map[string]struct{})
	for _, rec := range records {
		if err := ValidateRecord(rec, s.opts); err != nil {
			result.Rejected = append(result.Rejected, err)
			s.logger.WithError(err).WithField("repo", repo.RepoID).Warn("Rejected commit record")
			continue
		}

		key, domain := identity.Normalize(s.opts.Resolver, rec.AuthorName, rec.AuthorEmail)
		authorTime := rec.AuthorTime.Unix()

		var changes sql.NullInt64
		if rec.LinesChanged != nil && !repo.MetadataOnly {
			changes = sql.NullInt64{Int64: *rec.LinesChanged, Valid: true}
		}

		id := RowID(rec)
		res, err := stmt.ExecContext(ctx,
			id, repo.RepoID, key, rec.AuthorEmail, domain,
			authorTime, rec.AuthorTime.UTC().Year(), rec.CommitterTime.Unix(), changes)
		if err != nil {
			return nil, errors.StoreErrorf(err, "insert commit %s", rec.ID)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, errors.StoreError(err, "insert commit")
		}
		if n == 0 {
			result.Duplicates++
			continue
		}
		result.Inserted++
		touched[key] = struct{}{}

		if changes.Valid {
			for _, f := range groupFiles(rec.Files) {
				if _, err := fileStmt.ExecContext(ctx, repo.RepoID, id, f.Prefix, f.Suffix, f.NChanges); err != nil {
					return nil, errors.StoreErrorf(err, "insert files of commit %s", rec.ID)
				}
			}
		}
	}

	// Aggregates are recomputed only once every row of the repository is in.
	authors := make([]string, 0, len(touched))
	for a := range touched {
		authors = append(authors, a)
	}
	sort.Strings(authors)
	for _, a := range authors {
		if err := recomputeAuthor(ctx, tx, a); err != nil {
			return nil, errors.StoreErrorf(err, "recompute author %q", a)
		}
	}
	result.AuthorsUpdated = len(authors)

	var total int64
	if err := tx.GetContext(ctx, &total, tx.Rebind(`SELECT COUNT(*) FROM raw_commits WHERE repo_id = ?`), repo.RepoID); err != nil {
		return nil, errors.StoreError(err, "count repository commits")
	}

	state := *repo
	state.NCommits = total
	state.LastIngested = s.opts.Now().UTC()
	if _, err := tx.NamedExecContext(ctx, upsertRepository, &state); err != nil {
		return nil, errors.StoreError(err, "save repository state")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.StoreError(err, "commit ingestion")
	}
	*repo = state

	s.logger.WithFields(logrus.Fields{
		"repo":       repo.RepoID,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"rejected":   len(result.Rejected),
		"authors":    result.AuthorsUpdated,
	}).Debug("Merged repository commits")

	return result, nil
}
