// Package meta loads the project metadata file: plot bounds and the cohort
// overrides for email domains and repositories.
package meta

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/models"
)

// EmailPattern folds matching author emails into a domain cohort, optionally only for
// commits authored between Begin and End (inclusive buckets).
type EmailPattern struct {
	Pattern string            `yaml:"pattern"`
	Begin   *models.YearMonth `yaml:"begin"`
	End     *models.YearMonth `yaml:"end"`
}

// Matches reports whether a commit by email at the given time falls under the pattern
func (p EmailPattern) Matches(email string, at time.Time) bool {
	ok, err := path.Match(p.Pattern, email)
	if err != nil || !ok {
		return false
	}
	if p.Begin != nil && at.Before(p.Begin.Begin()) {
		return false
	}
	if p.End != nil && !at.Before(p.End.End()) {
		return false
	}
	return true
}

type Domain struct {
	Name string `yaml:"name"`
	// Show false drops the domain from domain cohort series
	Show            *bool          `yaml:"show"`
	AggregateEmails []EmailPattern `yaml:"aggregate_emails"`
}

// Repo maps repositories whose id matches Pattern to the Cohort label
type Repo struct {
	Pattern string `yaml:"pattern"`
	Cohort  string `yaml:"cohort"`
}

// Project is the decoded metadata file. The zero value applies no overrides.
type Project struct {
	Name      string   `yaml:"name"`
	FirstYear int      `yaml:"first_year"`
	LastYear  int      `yaml:"last_year"`
	Domains   []Domain `yaml:"domains"`
	Repos     []Repo   `yaml:"repos"`

	fingerprint string
}

// Load reads a YAML or JSON metadata file
func Load(filename string) (*Project, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.ConfigErrorf("read metadata %s: %v", filename, err)
	}
	return Parse(data)
}

// Parse decodes metadata. Unknown keys are rejected so typos do not silently drop overrides.
func Parse(data []byte) (*Project, error) {
	var p Project
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, errors.ConfigErrorf("parse metadata: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	p.fingerprint = hex.EncodeToString(sum[:])
	return &p, nil
}

// Validate checks names, glob syntax and year bounds
func (p *Project) Validate() error {
	if p.FirstYear != 0 && p.LastYear != 0 && p.FirstYear > p.LastYear {
		return errors.ConfigErrorf("metadata first_year %d is after last_year %d", p.FirstYear, p.LastYear)
	}
	for i, d := range p.Domains {
		if d.Name == "" {
			return errors.ConfigErrorf("metadata domain #%d has no name", i+1)
		}
		for _, ae := range d.AggregateEmails {
			if _, err := path.Match(ae.Pattern, ""); err != nil || ae.Pattern == "" {
				return errors.ConfigErrorf("metadata domain %s: bad email pattern %q", d.Name, ae.Pattern)
			}
			if ae.Begin != nil && ae.End != nil && ae.End.Before(*ae.Begin) {
				return errors.ConfigErrorf("metadata domain %s: pattern %q ends before it begins", d.Name, ae.Pattern)
			}
		}
	}
	for _, r := range p.Repos {
		if _, err := path.Match(r.Pattern, ""); err != nil || r.Pattern == "" {
			return errors.ConfigErrorf("metadata: bad repository pattern %q", r.Pattern)
		}
		if r.Cohort == "" {
			return errors.ConfigErrorf("metadata: repository pattern %q has no cohort", r.Pattern)
		}
	}
	return nil
}

// Fingerprint identifies the file contents; empty for a nil or hand-built project
func (p *Project) Fingerprint() string {
	if p == nil {
		return ""
	}
	return p.fingerprint
}

// Domain returns the domain cohort of a commit. Patterns are applied in file order and
// a later match overrides an earlier one; without a match the stored domain is kept.
func (p *Project) Domain(email, domain string, at time.Time) string {
	if p == nil {
		return domain
	}
	for _, d := range p.Domains {
		for _, ae := range d.AggregateEmails {
			if ae.Matches(email, at) {
				domain = d.Name
			}
		}
	}
	return domain
}

// Hidden reports whether the metadata turns the domain cohort off
func (p *Project) Hidden(domain string) bool {
	if p == nil {
		return false
	}
	hidden := false
	for _, d := range p.Domains {
		if d.Name == domain && d.Show != nil {
			hidden = !*d.Show
		}
	}
	return hidden
}

// RepoCohort returns the label of the first repository pattern matching repoID
func (p *Project) RepoCohort(repoID string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, r := range p.Repos {
		if ok, _ := path.Match(r.Pattern, repoID); ok {
			return r.Cohort, true
		}
	}
	return "", false
}

// Years returns the configured plot bounds; zero means unset
func (p *Project) Years() (first, last int) {
	if p == nil {
		return 0, 0
	}
	return p.FirstYear, p.LastYear
}
