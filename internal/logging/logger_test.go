package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   logrus.Level
	}{
		{"default", Config{}, logrus.InfoLevel},
		{"named", Config{Level: "warn"}, logrus.WarnLevel},
		{"verbose wins", Config{Level: "error", Verbose: true}, logrus.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closer, err := New(tt.config)
			require.NoError(t, err)
			defer closer.Close()
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}

	_, _, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gitcohort.log")
	logger, closer, err := New(Config{JSONFormat: true, OutputFile: path})
	require.NoError(t, err)

	logger.WithField("repo", "widgets").Info("Repository ingested")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"repo":"widgets"`)
	assert.Contains(t, string(data), `"msg":"Repository ingested"`)
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitcohort.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))
	require.NoError(t, os.WriteFile(path+".1", []byte("older"), 0644))

	_, closer, err := New(Config{OutputFile: path, MaxSize: 32, MaxBackups: 3})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, rotated, 64)

	older, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "older", string(older))
}
