package devc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFeatureLockfileMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	lockfile, err := LoadFeatureLockfile(filepath.Join(dir, "devcontainer.json"))
	require.NoError(t, err)
	assert.Empty(t, lockfile)
}

func TestLoadFeatureLockfileParsesSiblingFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devcontainer.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devcontainer-lock.json"), []byte(`{
		"features": {
			"ghcr.io/acme/repo/f": {"version": "1.0.0", "resolved": "ghcr.io/acme/repo/f@sha256:abc", "integrity": "sha256:abc"}
		}
	}`), 0o644))

	lockfile, err := LoadFeatureLockfile(configPath)
	require.NoError(t, err)
	require.Contains(t, lockfile, "ghcr.io/acme/repo/f")
	assert.Equal(t, "1.0.0", lockfile["ghcr.io/acme/repo/f"].Version)
}

func TestLoadFeatureLockfileMalformedJSONReturnsEmptyNoError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devcontainer.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devcontainer-lock.json"), []byte(`not json`), 0o644))

	lockfile, err := LoadFeatureLockfile(configPath)
	require.NoError(t, err)
	assert.Empty(t, lockfile)
}
