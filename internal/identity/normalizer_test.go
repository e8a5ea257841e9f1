package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@x.com", "x.com"},
		{"Bob@Mail.Example.ORG", "mail.example.org"},
		{"weird@name@host.de", "host.de"},
		{`quoted\@local@gnome.org`, "gnome.org"},
		{`only\@escaped`, ""},
		{"no-at-sign", ""},
		{"", ""},
		{"trailing@", ""},
		{"hpj@cl.cam.ac.uk", "cl.cam.ac.uk"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, Domain(tt.email))
		})
	}
}

type lowerResolver struct{}

func (lowerResolver) Key(name, _ string) string { return strings.ToLower(name) }

func TestNormalize(t *testing.T) {
	key, domain := Normalize(nil, "Alice ", "a@x.com")
	assert.Equal(t, "Alice ", key, "names are compared exactly, including whitespace")
	assert.Equal(t, "x.com", domain)

	key, _ = Normalize(NameResolver{}, "alice", "a@x.com")
	assert.NotEqual(t, "Alice", key)

	key, _ = Normalize(lowerResolver{}, "ALICE", "a@x.com")
	assert.Equal(t, "alice", key)
}
