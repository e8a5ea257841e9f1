package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityByType(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		fatal bool
		typ   ErrorType
	}{
		{"config", ConfigErrorf("unknown unit %q", "lines"), true, ErrorTypeConfig},
		{"store", StoreError(errors.New("disk I/O error"), "insert commit"), true, ErrorTypeStore},
		{"source", SourceError(errors.New("not a git repository"), "gtk"), false, ErrorTypeSource},
		{"record", RecordErrorf("commit %s has no author", "abc123"), false, ErrorTypeRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.err.IsFatal())
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
			assert.Equal(t, tt.typ, GetType(tt.err))
		})
	}
}

func TestWrappedChain(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("ingest gtk: %w", StoreError(cause, "begin transaction"))

	assert.True(t, IsFatal(err))
	assert.True(t, IsType(err, ErrorTypeStore))
	assert.False(t, IsType(err, ErrorTypeSource))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ingest gtk: begin transaction: database is locked", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeStore, SeverityCritical, "nothing"))
	assert.False(t, IsFatal(nil))
	assert.Equal(t, ErrorTypeInternal, GetType(errors.New("plain")))
}

func TestDetailedString(t *testing.T) {
	err := SourceError(errors.New("exit status 128"), "glib")
	detail := err.DetailedString()

	require.Contains(t, detail, "[MEDIUM] [SOURCE] repository glib")
	assert.Contains(t, detail, "Caused by: exit status 128")
	assert.Contains(t, detail, "repo: glib")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(ConfigError("bad unit")))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("run: %w", SourceError(errors.New("gone"), "gtk"))))
	assert.Equal(t, 4, ExitCode(StoreError(errors.New("locked"), "begin")))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
}

func TestDetails(t *testing.T) {
	wrapped := fmt.Errorf("plot: %w", ConfigErrorf("unknown unit %q", "lines"))
	assert.Contains(t, Details(wrapped), "[CRITICAL] [CONFIG] unknown unit \"lines\"")
	assert.Equal(t, "plain\n", Details(errors.New("plain")))
}
