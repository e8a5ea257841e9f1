package storage

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rohankatakam/gitcohort/internal/errors"
)

// authorAggregate is the single definition of an authors row. Recompute and RebuildAll
// both insert its output, which is what makes them agree.
// n_changes is NULL as soon as one of the author's commits has an unknown count.
const authorAggregate = `
	INSERT INTO authors
		(author_name, first_time, first_year, last_time, last_year,
		 active_time, n_commits, n_changes)
	SELECT author_name,
		MIN(author_time),
		MIN(author_year),
		MAX(author_time),
		MAX(author_year),
		MAX(author_time) - MIN(author_time),
		COUNT(*),
		CASE WHEN COUNT(n_changes) = COUNT(*) THEN SUM(n_changes) ELSE NULL END
	FROM raw_commits`

func recomputeAuthor(ctx context.Context, tx *sqlx.Tx, author string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM authors WHERE author_name = ?`), author); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(authorAggregate+` WHERE author_name = ? GROUP BY author_name`), author)
	return err
}

// Recompute replaces the authors row of one author from raw_commits. Readers see either
// the old row or the new one.
func (s *SQLStore) Recompute(ctx context.Context, author string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StoreError(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := recomputeAuthor(ctx, tx, author); err != nil {
		return errors.StoreErrorf(err, "recompute author %q", author)
	}
	if err := tx.Commit(); err != nil {
		return errors.StoreError(err, "commit author summary")
	}
	return nil
}

// RebuildAll drops and regenerates every authors row in one transaction and returns
// the number of authors written.
func (s *SQLStore) RebuildAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.StoreError(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM authors`); err != nil {
		return 0, errors.StoreError(err, "clear authors")
	}
	res, err := tx.ExecContext(ctx, authorAggregate+` GROUP BY author_name`)
	if err != nil {
		return 0, errors.StoreError(err, "rebuild authors")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.StoreError(err, "rebuild authors")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.StoreError(err, "commit author rebuild")
	}

	s.logger.WithField("authors", n).Info("Rebuilt author summaries")
	return int(n), nil
}
