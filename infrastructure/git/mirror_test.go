package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func commitFile(t *testing.T, dir, name, content, msg string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", msg)
}

func newTestMirror(t *testing.T) *GiteaMirror {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	mirror, err := NewGiteaMirror(nil)
	require.NoError(t, err)
	return mirror
}

func TestSync_PicksUpNewRemoteCommits(t *testing.T) {
	mirror := newTestMirror(t)
	ctx := context.Background()

	origin := t.TempDir()
	runGit(t, origin, "init", "-b", "main")
	commitFile(t, origin, "a.go", "package a\n", "c1")

	dst := filepath.Join(t.TempDir(), "clone")
	require.NoError(t, mirror.Sync(ctx, origin, dst, "main"))

	first, err := mirror.CurrentCommit(ctx, dst)
	require.NoError(t, err)

	// A commit lands on origin after the bootstrap. The next sync must
	// make it visible in the work tree.
	commitFile(t, origin, "b.go", "package b\n", "c2")
	require.NoError(t, mirror.Sync(ctx, origin, dst, "main"))

	second, err := mirror.CurrentCommit(ctx, dst)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	changes, err := mirror.ChangedFiles(ctx, dst, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, changes.Added)
}

func TestSync_RefusesNonEmptyNonGitDir(t *testing.T) {
	mirror := newTestMirror(t)

	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stuff.txt"), []byte("x"), 0o644))

	err := mirror.Sync(context.Background(), "https://github.com/acme/demo.git", dst, "main")
	assert.ErrorIs(t, err, ErrDestinationNotEmpty)
}

func TestAuthenticatedURL(t *testing.T) {
	assert.Equal(t, "https://tok@github.com/acme/demo.git",
		AuthenticatedURL("https://github.com/acme/demo.git", "tok"))
	assert.Equal(t, "https://github.com/acme/demo.git",
		AuthenticatedURL("https://github.com/acme/demo.git", ""))
	assert.Equal(t, "/local/path/repo",
		AuthenticatedURL("/local/path/repo", "tok"))
}

func TestParseNameStatus(t *testing.T) {
	out := "A\tsrc/c.ts\n" +
		"M\tsrc/a.ts\n" +
		"D\tsrc/b.ts\n" +
		"R100\told/name.ts\tnew/name.ts\n"

	changes := ParseNameStatus(out)

	assert.Equal(t, []string{"src/c.ts"}, changes.Added)
	assert.Equal(t, []string{"src/a.ts"}, changes.Modified)
	assert.Equal(t, []string{"src/b.ts", "old/name.ts"}, changes.Deleted)
	assert.Equal(t, []string{"new/name.ts"}, changes.Renamed)
}

func TestParseNameStatus_PartialRenameScore(t *testing.T) {
	changes := ParseNameStatus("R087\ta.go\tb.go\n")

	assert.Equal(t, []string{"a.go"}, changes.Deleted)
	assert.Equal(t, []string{"b.go"}, changes.Renamed)
}

func TestParseNameStatus_Empty(t *testing.T) {
	changes := ParseNameStatus("\n\n")

	assert.True(t, changes.Empty())
	assert.Empty(t, changes.ToProcess())
}

func TestChanges_ToProcess(t *testing.T) {
	c := Changes{
		Added:    []string{"a"},
		Modified: []string{"m"},
		Deleted:  []string{"d"},
		Renamed:  []string{"r"},
	}

	assert.Equal(t, []string{"a", "m", "r"}, c.ToProcess())
	assert.False(t, c.Empty())
}
