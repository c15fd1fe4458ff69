package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCacheDirBaseCreatesAppSubdirUnderFirstExistingPrefix(t *testing.T) {
	base := t.TempDir()
	cacheBase := filepath.Join(base, "cache")
	require.NoError(t, os.MkdirAll(cacheBase, 0o755))

	dataBase := filepath.Join(base, "data")
	require.NoError(t, os.MkdirAll(dataBase, 0o755))

	dir, err := resolveCacheDirBase([]string{
		filepath.Join(base, "missing"),
		cacheBase,
		dataBase,
	}, filepath.Join(base, "fallback", "%s"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheBase, appName), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveCacheDirBaseFallsBackWhenNoPrefixExists(t *testing.T) {
	base := t.TempDir()
	fallback := filepath.Join(base, "fallback-root")

	dir, err := resolveCacheDirBase([]string{
		filepath.Join(base, "nope-one"),
		filepath.Join(base, "nope-two"),
	}, filepath.Join(fallback, "%s"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fallback, appName), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveCacheDirBaseSkipsEmptyPrefix(t *testing.T) {
	base := t.TempDir()
	cacheBase := filepath.Join(base, "cache")
	require.NoError(t, os.MkdirAll(cacheBase, 0o755))

	dir, err := resolveCacheDirBase([]string{"", cacheBase}, filepath.Join(base, "fallback", "%s"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheBase, appName), dir)
}
