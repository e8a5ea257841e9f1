package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// NoMonth marks a YearMonth that stands for a whole year
const NoMonth = -1

// YearMonth is a histogram bucket: a year, or one month of it. Months are zero-based.
type YearMonth struct {
	Year  int
	Month int
}

// YearOf returns the year bucket containing t
func YearOf(t time.Time) YearMonth {
	return YearMonth{Year: t.UTC().Year(), Month: NoMonth}
}

// MonthOf returns the month bucket containing t
func MonthOf(t time.Time) YearMonth {
	t = t.UTC()
	return YearMonth{Year: t.Year(), Month: int(t.Month()) - 1}
}

// HasMonth reports whether ym is a month bucket
func (ym YearMonth) HasMonth() bool {
	return ym.Month != NoMonth
}

func (ym YearMonth) Next() YearMonth {
	switch {
	case !ym.HasMonth():
		return YearMonth{Year: ym.Year + 1, Month: NoMonth}
	case ym.Month == 11:
		return YearMonth{Year: ym.Year + 1, Month: 0}
	default:
		return YearMonth{Year: ym.Year, Month: ym.Month + 1}
	}
}

// Begin is the first instant of the bucket, in UTC
func (ym YearMonth) Begin() time.Time {
	m := 0
	if ym.HasMonth() {
		m = ym.Month
	}
	return time.Date(ym.Year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the bucket, in UTC
func (ym YearMonth) End() time.Time {
	if !ym.HasMonth() {
		return time.Date(ym.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return ym.Next().Begin()
}

// Before orders buckets by their start
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (ym YearMonth) String() string {
	if !ym.HasMonth() {
		return fmt.Sprintf("%d", ym.Year)
	}
	return fmt.Sprintf("%d-%02d", ym.Year, ym.Month+1)
}

// UnmarshalYAML accepts {year: 2019, month: 3} with a zero-based month, or a bare year.
// JSON metadata files decode through the same path.
func (ym *YearMonth) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var year int
		if err := node.Decode(&year); err != nil {
			return fmt.Errorf("year-month %q: %w", node.Value, err)
		}
		*ym = YearMonth{Year: year, Month: NoMonth}
		return nil
	}

	var raw struct {
		Year  int  `yaml:"year"`
		Month *int `yaml:"month"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*ym = YearMonth{Year: raw.Year, Month: NoMonth}
	if raw.Month != nil {
		if *raw.Month < 0 || *raw.Month > 11 {
			return fmt.Errorf("line %d: month %d out of range 0-11", node.Line, *raw.Month)
		}
		ym.Month = *raw.Month
	}
	return nil
}
