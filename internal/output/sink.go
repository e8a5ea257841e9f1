package output

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rohankatakam/gitcohort/internal/cohort"
	"github.com/rohankatakam/gitcohort/internal/errors"
)

// Sink writes a series in a format a plotting tool can consume
type Sink interface {
	Write(s *cohort.Series, w io.Writer) error
}

// Format names a sink
type Format string

const (
	FormatLong Format = "long" // cohort|timestamp|value, one row per cell
	FormatWide Format = "wide" // Year|[Month|]Sum|cohort..., one row per bucket
	FormatJSON Format = "json"
)

// NewSink returns the sink for format
func NewSink(format string) (Sink, error) {
	switch Format(format) {
	case FormatLong, "":
		return &LongSink{}, nil
	case FormatWide:
		return &WideSink{}, nil
	case FormatJSON:
		return &JSONSink{}, nil
	}
	return nil, errors.ConfigErrorf("unknown output format %q (want long, wide or json)", format)
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '|'
	return cw
}

// value renders a cell; unknown values are left empty rather than written as 0
func value(v int64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// LongSink writes (cohort, bucket start as Unix seconds, value) triples
type LongSink struct{}

func (LongSink) Write(s *cohort.Series, w io.Writer) error {
	cw := newWriter(w)
	if err := cw.Write([]string{"cohort", "timestamp", "value"}); err != nil {
		return err
	}
	for _, r := range s.Rows {
		record := []string{r.Cohort, strconv.FormatInt(r.Timestamp().Unix(), 10), value(r.Value, r.Valid)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WideSink writes the histogram table: one row per bucket, one column per cohort,
// preceded by the bucket sum. Months are zero-based.
type WideSink struct{}

func (WideSink) Write(s *cohort.Series, w io.Writer) error {
	cw := newWriter(w)
	if len(s.Buckets) == 0 {
		cw.Flush()
		return cw.Error()
	}

	monthly := s.Buckets[0].HasMonth()
	header := []string{"Year"}
	if monthly {
		header = append(header, "Month")
	}
	header = append(header, "Sum")
	for _, c := range s.Cohorts {
		if c == "" {
			c = "(blank)"
		}
		header = append(header, c)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for b, ym := range s.Buckets {
		record := []string{strconv.Itoa(ym.Year)}
		if monthly {
			record = append(record, strconv.Itoa(ym.Month))
		}
		record = append(record, value(s.Sum(b)))
		for c := range s.Cohorts {
			cell := s.Cell(c, b)
			record = append(record, value(cell.Value, cell.Valid))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSONSink writes the series as one JSON document
type JSONSink struct{}

func (JSONSink) Write(s *cohort.Series, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
