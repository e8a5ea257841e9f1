package git

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// run executes git -C repoPath args... and returns trimmed stdout.
func run(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoPath}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w (stderr: %s)", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}

	return strings.TrimSpace(string(output)), nil
}

// DetectGitRepo checks that repoPath is inside a git repository (bare or not)
func DetectGitRepo(ctx context.Context, repoPath string) error {
	if _, err := run(ctx, repoPath, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("not a git repository: %w", err)
	}
	return nil
}

// GetHeadSHA returns the commit HEAD points to
func GetHeadSHA(ctx context.Context, repoPath string) (string, error) {
	return run(ctx, repoPath, "rev-parse", "--verify", "HEAD^{commit}")
}

// RefsState fingerprints the tips of every ref the log walks: local branches,
// remote-tracking branches and HEAD. It changes whenever any of them moves.
func RefsState(ctx context.Context, repoPath string) (string, error) {
	tips, err := run(ctx, repoPath, append([]string{"rev-parse"}, walkedRefs...)...)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(tips))
	return hex.EncodeToString(sum[:]), nil
}

// IsMetadataOnly reports whether the clone lacks file content: a partial clone with a
// promisor remote, or a shallow clone. Line counts from such clones are unreliable or
// would make git fetch every blob.
func IsMetadataOnly(ctx context.Context, repoPath string) (bool, error) {
	// git config --get exits 1 when the key is unset, so errors here mean "no".
	if v, err := run(ctx, repoPath, "config", "--get", "remote.origin.promisor"); err == nil && v == "true" {
		return true, nil
	}
	if v, err := run(ctx, repoPath, "config", "--get", "extensions.partialclone"); err == nil && v != "" {
		return true, nil
	}

	shallow, err := run(ctx, repoPath, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return false, err
	}
	return shallow == "true", nil
}

// RepoName derives the repository id from its directory name, dropping a ".git" suffix
// so bare mirrors and working trees of one project share an id.
func RepoName(repoPath string) (string, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	name := filepath.Base(abs)
	if name == ".git" {
		name = filepath.Base(filepath.Dir(abs))
	}
	return strings.TrimSuffix(name, ".git"), nil
}
