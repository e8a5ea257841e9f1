package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/models"
)

// Source produces the commit records of one repository in no particular order.
type Source interface {
	RepoID() string
	Path() string
	// Head identifies the state of every ref being read; empty when unknown.
	Head() string
	// MetadataOnly is true when records carry no line counts.
	MetadataOnly() bool
	Records(ctx context.Context) iter.Seq2[models.Record, error]
}

// walkedRefs are the refs git log starts from
var walkedRefs = []string{"--branches", "--remotes", "HEAD"}

// LogSource reads commits by running `git log` in a local repository.
type LogSource struct {
	repoID       string
	path         string
	head         string
	metadataOnly bool
}

// Open checks that path is a readable git repository with at least one commit.
// Failures are Source Errors: the caller skips the repository.
func Open(ctx context.Context, path string) (*LogSource, error) {
	repoID, err := RepoName(path)
	if err != nil {
		return nil, errors.SourceError(err, path)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, errors.SourceError(err, repoID)
	}
	if err := DetectGitRepo(ctx, path); err != nil {
		return nil, errors.SourceError(err, repoID)
	}

	if _, err := GetHeadSHA(ctx, path); err != nil {
		return nil, errors.SourceError(fmt.Errorf("repository has no commits: %w", err), repoID)
	}
	head, err := RefsState(ctx, path)
	if err != nil {
		return nil, errors.SourceError(err, repoID)
	}

	metadataOnly, err := IsMetadataOnly(ctx, path)
	if err != nil {
		return nil, errors.SourceError(err, repoID)
	}

	return &LogSource{
		repoID:       repoID,
		path:         path,
		head:         head,
		metadataOnly: metadataOnly,
	}, nil
}

func (s *LogSource) RepoID() string     { return s.repoID }
func (s *LogSource) Path() string       { return s.path }
func (s *LogSource) Head() string       { return s.head }
func (s *LogSource) MetadataOnly() bool { return s.metadataOnly }

// Args returns the git log arguments used for this repository
func (s *LogSource) Args() []string {
	args := []string{"-C", s.path, "log", "--date-order", LogFormat}
	if !s.metadataOnly {
		args = append(args, "--numstat")
	}
	return append(args, walkedRefs...)
}

// Records streams commits from git log. A failing git process is reported as a
// Source Error after the records read so far.
func (s *LogSource) Records(ctx context.Context) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cmd := exec.CommandContext(ctx, "git", s.Args()...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(models.Record{}, errors.SourceError(err, s.repoID))
			return
		}
		if err := cmd.Start(); err != nil {
			yield(models.Record{}, errors.SourceError(err, s.repoID))
			return
		}

		for rec, err := range ParseLog(stdout, !s.metadataOnly) {
			if !yield(rec, err) {
				cancel()
				cmd.Wait()
				return
			}
		}
		// Drain anything ParseLog left unread so git can exit.
		io.Copy(io.Discard, stdout)

		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				err = fmt.Errorf("git log: %w (stderr: %s)", err, msg)
			}
			yield(models.Record{}, errors.SourceError(err, s.repoID))
		}
	}
}

// StaticSource serves records already in memory, for commit streams that were
// extracted elsewhere.
type StaticSource struct {
	ID       string
	Location string
	Rev      string
	NoStats  bool
	Commits  []models.Record
}

func (s *StaticSource) RepoID() string     { return s.ID }
func (s *StaticSource) Path() string       { return s.Location }
func (s *StaticSource) Head() string       { return s.Rev }
func (s *StaticSource) MetadataOnly() bool { return s.NoStats }

func (s *StaticSource) Records(ctx context.Context) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		for _, rec := range s.Commits {
			if ctx.Err() != nil {
				yield(models.Record{}, ctx.Err())
				return
			}
			if s.NoStats {
				rec.LinesChanged = nil
				rec.Files = nil
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
