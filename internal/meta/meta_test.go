package meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/models"
)

const gnomeYAML = `
name: GNOME
first_year: 1997
last_year: 2020
domains:
  - name: redhat.com
    aggregate_emails:
      - pattern: "*@gnome.org"
        begin: {year: 2001, month: 0}
        end: 2004
  - name: users.noreply.github.com
    show: false
repos:
  - pattern: "gtk*"
    cohort: toolkit
  - pattern: "*"
    cohort: apps
`

func TestParseYAML(t *testing.T) {
	p, err := Parse([]byte(gnomeYAML))
	require.NoError(t, err)

	assert.Equal(t, "GNOME", p.Name)
	first, last := p.Years()
	assert.Equal(t, 1997, first)
	assert.Equal(t, 2020, last)
	require.Len(t, p.Domains, 2)
	require.Len(t, p.Domains[0].AggregateEmails, 1)
	assert.Equal(t, models.YearMonth{Year: 2001, Month: 0}, *p.Domains[0].AggregateEmails[0].Begin)
	assert.Equal(t, models.YearMonth{Year: 2004, Month: models.NoMonth}, *p.Domains[0].AggregateEmails[0].End)
	assert.NotEmpty(t, p.Fingerprint())
}

func TestParseJSON(t *testing.T) {
	p, err := Parse([]byte(`{"name": "x", "first_year": 2000, "domains": [{"name": "a.org", "show": true}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2000, p.FirstYear)
	assert.False(t, p.Hidden("a.org"))
}

func TestParseRejectsBadMetadata(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "nmae: typo\n"},
		{"years inverted", "first_year: 2020\nlast_year: 2010\n"},
		{"nameless domain", "domains: [{show: false}]\n"},
		{"bad glob", "domains: [{name: a, aggregate_emails: [{pattern: \"[\"}]}]\n"},
		{"repo without cohort", "repos: [{pattern: x}]\n"},
		{"month out of range", "domains: [{name: a, aggregate_emails: [{pattern: x, begin: {year: 2000, month: 12}}]}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestDomainOverride(t *testing.T) {
	p, err := Parse([]byte(gnomeYAML))
	require.NoError(t, err)

	at := func(y int, m time.Month) time.Time { return time.Date(y, m, 15, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, "gnome.org", p.Domain("hp@gnome.org", "gnome.org", at(2000, time.December)))
	assert.Equal(t, "redhat.com", p.Domain("hp@gnome.org", "gnome.org", at(2001, time.January)))
	assert.Equal(t, "redhat.com", p.Domain("hp@gnome.org", "gnome.org", at(2004, time.December)))
	assert.Equal(t, "gnome.org", p.Domain("hp@gnome.org", "gnome.org", at(2005, time.January)))
	assert.Equal(t, "suse.de", p.Domain("hp@suse.de", "suse.de", at(2002, time.May)))
}

func TestHiddenAndRepoCohort(t *testing.T) {
	p, err := Parse([]byte(gnomeYAML))
	require.NoError(t, err)

	assert.True(t, p.Hidden("users.noreply.github.com"))
	assert.False(t, p.Hidden("redhat.com"))

	label, ok := p.RepoCohort("gtk-doc")
	assert.True(t, ok)
	assert.Equal(t, "toolkit", label)

	label, ok = p.RepoCohort("nautilus")
	assert.True(t, ok)
	assert.Equal(t, "apps", label)
}

func TestNilProject(t *testing.T) {
	var p *Project
	assert.Equal(t, "x.org", p.Domain("a@x.org", "x.org", time.Now()))
	assert.False(t, p.Hidden("x.org"))
	_, ok := p.RepoCohort("x")
	assert.False(t, ok)
	assert.Empty(t, p.Fingerprint())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gnome.yaml")
	require.NoError(t, os.WriteFile(file, []byte(gnomeYAML), 0644))

	p, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "GNOME", p.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
