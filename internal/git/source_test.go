package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rohankatakam/gitcohort/internal/errors"
	"github.com/rohankatakam/gitcohort/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gitIn runs git in dir with extra environment
func gitIn(t *testing.T, dir string, env []string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

// commitFile writes file and commits it as name at date
func commitFile(t *testing.T, dir, file, content, name, email, date string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
	gitIn(t, dir, nil, "add", file)
	gitIn(t, dir, []string{
		"GIT_AUTHOR_NAME=" + name, "GIT_AUTHOR_EMAIL=" + email, "GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_NAME=" + name, "GIT_COMMITTER_EMAIL=" + email, "GIT_COMMITTER_DATE=" + date,
	}, "commit", "-q", "-m", "update "+file)
}

// initRepo creates a repository with two commits by different authors
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := filepath.Join(t.TempDir(), "widgets")
	require.NoError(t, os.MkdirAll(dir, 0755))

	gitIn(t, dir, nil, "init", "-q")
	gitIn(t, dir, nil, "config", "commit.gpgsign", "false")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree\n"), 0644))
	gitIn(t, dir, nil, "add", "a.txt")
	gitIn(t, dir, []string{
		"GIT_AUTHOR_NAME=Alice", "GIT_AUTHOR_EMAIL=Alice@X.com",
		"GIT_AUTHOR_DATE=2010-03-01T12:00:00Z",
		"GIT_COMMITTER_NAME=Alice", "GIT_COMMITTER_EMAIL=alice@x.com",
		"GIT_COMMITTER_DATE=2010-03-01T12:00:00Z",
	}, "commit", "-q", "-m", "first")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n2\nthree\nfour\n"), 0644))
	gitIn(t, dir, nil, "add", "a.txt")
	gitIn(t, dir, []string{
		"GIT_AUTHOR_NAME=Bob", "GIT_AUTHOR_EMAIL=b@y.org",
		"GIT_AUTHOR_DATE=2012-06-01T12:00:00Z",
		"GIT_COMMITTER_NAME=Bob", "GIT_COMMITTER_EMAIL=b@y.org",
		"GIT_COMMITTER_DATE=2012-06-02T12:00:00Z",
	}, "commit", "-q", "-m", "second")

	return dir
}

func TestLogSourceRecords(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	src, err := Open(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "widgets", src.RepoID())
	assert.False(t, src.MetadataOnly())
	assert.Len(t, src.Head(), 40)

	byAuthor := map[string]models.Record{}
	for rec, err := range src.Records(ctx) {
		require.NoError(t, err)
		byAuthor[rec.AuthorName] = rec
	}
	require.Len(t, byAuthor, 2)

	alice := byAuthor["Alice"]
	assert.Equal(t, "alice@x.com", alice.AuthorEmail)
	assert.Equal(t, 2010, alice.AuthorTime.Year())
	require.NotNil(t, alice.LinesChanged)
	assert.Equal(t, int64(3), *alice.LinesChanged)

	bob := byAuthor["Bob"]
	require.NotNil(t, bob.LinesChanged)
	// one line replaced (1 insertion + 1 deletion) and one appended
	assert.Equal(t, int64(3), *bob.LinesChanged)
	assert.True(t, bob.CommitterTime.After(bob.AuthorTime))
}

func TestRefsStateFollowsEveryBranch(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	head, err := GetHeadSHA(ctx, dir)
	require.NoError(t, err)
	before, err := RefsState(ctx, dir)
	require.NoError(t, err)

	gitIn(t, dir, nil, "checkout", "-q", "-b", "feature")
	commitFile(t, dir, "b.txt", "new\n", "Carol", "carol@z.net", "2013-01-05T12:00:00Z")
	gitIn(t, dir, nil, "checkout", "-q", "-")

	sameHead, err := GetHeadSHA(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, head, sameHead)

	src, err := Open(ctx, dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, src.Head(), "a commit on another branch changes the state")

	authors := map[string]bool{}
	for rec, err := range src.Records(ctx) {
		require.NoError(t, err)
		authors[rec.AuthorName] = true
	}
	assert.Equal(t, map[string]bool{"Alice": true, "Bob": true, "Carol": true}, authors)

	again, err := RefsState(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, src.Head(), again)
}

func TestOpenRejectsNonRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ctx := context.Background()

	_, err := Open(ctx, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	assert.False(t, errors.IsFatal(err))

	plain := t.TempDir()
	_, err = Open(ctx, plain)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
}

func TestRepoName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"gtk", "glib.git"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(p, 0755))
		got, err := RepoName(p)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"gtk": "gtk", "glib.git": "glib"}[name], got)
	}
}

func TestStaticSourceDropsStatsWhenMetadataOnly(t *testing.T) {
	n := int64(7)
	src := &StaticSource{ID: "mirror", NoStats: true, Commits: []models.Record{{ID: "x", LinesChanged: &n}}}
	for rec, err := range src.Records(context.Background()) {
		require.NoError(t, err)
		assert.Nil(t, rec.LinesChanged)
	}
}
