package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextExcludesListPrefersContainerignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".containerignore"), []byte("node_modules\n*.log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte("should-not-be-used\n"), 0o644))

	excludes := buildContextExcludesList(dir)
	assert.Contains(t, excludes, "node_modules")
	assert.Contains(t, excludes, "*.log")
	assert.NotContains(t, excludes, "should-not-be-used")
}

func TestBuildContextExcludesListFallsBackToDockerignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte(".git\n"), 0o644))

	excludes := buildContextExcludesList(dir)
	assert.Contains(t, excludes, ".git")
}

func TestBuildContextExcludesListNilWhenNeitherPresent(t *testing.T) {
	dir := t.TempDir()
	excludes := buildContextExcludesList(dir)
	assert.Nil(t, excludes)
}
