package git

import (
	"bufio"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/models"
)

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// LogFormat is the --pretty argument whose output ParseLog reads
const LogFormat = "--pretty=format:%x1e%H%x1f%aN%x1f%aE%x1f%at%x1f%ct"

// ParseLog reads `git log` output produced with LogFormat, optionally followed by
// --numstat lines per commit. With withStats, every record carries a line count
// (zero for commits with no file changes, such as merges); without, LinesChanged is nil.
// Header lines that cannot be parsed are yielded as record errors and skipped.
func ParseLog(r io.Reader, withStats bool) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

		var (
			cur     models.Record
			pending bool
			changed int64
			files   []models.FileChange
		)

		flush := func() bool {
			if !pending {
				return true
			}
			pending = false
			if withStats {
				n := changed
				cur.LinesChanged = &n
				cur.Files = files
			}
			return yield(cur, nil)
		}

		for scanner.Scan() {
			line := scanner.Text()

			if strings.HasPrefix(line, recordSep) {
				if !flush() {
					return
				}
				rec, err := parseHeader(strings.TrimPrefix(line, recordSep))
				if err != nil {
					if !yield(models.Record{}, err) {
						return
					}
					continue
				}
				cur, pending, changed, files = rec, true, 0, nil
				continue
			}

			if pending && withStats {
				if fc, ok := parseNumstat(line); ok {
					changed += fc.Lines
					files = append(files, fc)
				}
			}
		}

		if !flush() {
			return
		}
		if err := scanner.Err(); err != nil {
			yield(models.Record{}, err)
		}
	}
}

func parseHeader(line string) (models.Record, error) {
	fields := strings.Split(line, fieldSep)
	if len(fields) != 5 {
		return models.Record{}, errors.RecordErrorf("log header has %d fields, want 5", len(fields))
	}

	at, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return models.Record{}, errors.RecordErrorf("commit %s: bad author time %q", fields[0], fields[3]).
			WithContext("id", fields[0])
	}
	ct, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return models.Record{}, errors.RecordErrorf("commit %s: bad committer time %q", fields[0], fields[4]).
			WithContext("id", fields[0])
	}

	return models.Record{
		ID:            fields[0],
		AuthorName:    fields[1],
		AuthorEmail:   strings.ToLower(fields[2]),
		AuthorTime:    time.Unix(at, 0).UTC(),
		CommitterTime: time.Unix(ct, 0).UTC(),
	}, nil
}

// parseNumstat reads one "added<TAB>deleted<TAB>path" line. Binary files ("-") count
// as zero lines.
func parseNumstat(line string) (models.FileChange, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 || parts[2] == "" {
		return models.FileChange{}, false
	}
	fc := models.FileChange{Path: renamedPath(parts[2])}
	for _, p := range parts[:2] {
		if p == "-" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return models.FileChange{}, false
		}
		fc.Lines += n
	}
	return fc, true
}

// renamedPath resolves numstat rename notation to the new path:
// "old => new" and "dir/{old => new}/file".
func renamedPath(p string) string {
	if !strings.Contains(p, " => ") {
		return p
	}
	open := strings.Index(p, "{")
	end := strings.LastIndex(p, "}")
	if open >= 0 && end > open {
		inner := p[open+1 : end]
		_, after, _ := strings.Cut(inner, " => ")
		joined := p[:open] + after + p[end+1:]
		return strings.ReplaceAll(joined, "//", "/")
	}
	_, after, _ := strings.Cut(p, " => ")
	return after
}
