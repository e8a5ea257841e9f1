// Package identity derives the author key and email domain stored with each commit.
package identity

import "strings"

// Resolver maps a commit's author fields to the key authors are grouped by.
type Resolver interface {
	Key(name, email string) string
}

// NameResolver groups by the author name exactly as recorded. Different spellings or
// emails of one person are different authors.
type NameResolver struct{}

// Key returns name unchanged
func (NameResolver) Key(name, _ string) string {
	return name
}

// Normalize returns the author key and email domain for a commit
func Normalize(r Resolver, name, email string) (key, domain string) {
	if r == nil {
		r = NameResolver{}
	}
	return r.Key(name, email), Domain(email)
}

// Domain returns the lower-cased part of email after the last unescaped '@'.
// It returns "" when email has no such '@'.
func Domain(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] != '@' {
			continue
		}
		if escaped(email, i) {
			continue
		}
		return strings.ToLower(strings.TrimSpace(email[i+1:]))
	}
	return ""
}

// escaped reports whether the byte at i is preceded by an odd number of backslashes.
func escaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
