package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0770))
	require.NoError(t, os.WriteFile(path, []byte(content), 0660))
}

func TestPatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.txt")
	writeFile(t, path, "version = 0.0.0-dev\nother = 0.0.0-dev\n")

	changed, err := Patch(path, "0.0.0-dev", "1.2.3")
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version = 1.2.3\nother = 1.2.3\n", string(data))
}

func TestPatchUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.txt")
	writeFile(t, path, "version = 1.2.3\n")

	before, err := os.Stat(path)
	require.NoError(t, err)

	changed, err := Patch(path, "0.0.0-dev", "1.2.3")
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "unchanged files must not be rewritten")
}

func TestPatchMissingFile(t *testing.T) {
	_, err := Patch(filepath.Join(t.TempDir(), "nope.txt"), "a", "b")
	assert.ErrorContains(t, err, "could not read")
}

func TestPatchEmptyNeedle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, path, "content")

	_, err := Patch(path, "", "x")
	assert.Error(t, err)
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dist", "a.pkg"), "a")
	writeFile(t, filepath.Join(root, "dist", "nested", "b.pkg"), "b")
	writeFile(t, filepath.Join(root, "dist", "nested", "c.txt"), "c")

	matches, err := Glob(root, []string{"dist/**/*.pkg"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Contains(t, matches[0], "a.pkg")
	assert.Contains(t, matches[1], "b.pkg")
}

func TestGlobNoMatches(t *testing.T) {
	matches, err := Glob(t.TempDir(), []string{"dist/**/*.pkg"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGlobPlainPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "exact.txt"), "x")

	matches, err := Glob(root, []string{"exact.txt"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0], "exact.txt")
}
