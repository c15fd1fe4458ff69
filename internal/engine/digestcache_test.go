package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestCacheGetSetRoundTrip(t *testing.T) {
	dc := &DigestCache{Entries: map[string]*DigestEntry{}}

	_, ok := dc.Get("ghcr.io/acme/repo/feature:1.2.3")
	assert.False(t, ok)

	dc.Set("ghcr.io/acme/repo/feature:1.2.3", "sha256:abcd1234")
	digest, ok := dc.Get("ghcr.io/acme/repo/feature:1.2.3")
	assert.True(t, ok)
	assert.Equal(t, "sha256:abcd1234", digest)
}

func TestDigestCacheSaveWritesCSVRowsReadableByGoCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digests.csv")

	dc := &DigestCache{path: path, Entries: map[string]*DigestEntry{}}
	dc.Set("ghcr.io/acme/repo/feature:1.0.0", "sha256:deadbeef")
	require.NoError(t, dc.Save())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []*DigestEntry
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "ghcr.io/acme/repo/feature:1.0.0", rows[0].FeatureRef)
	assert.Equal(t, "sha256:deadbeef", rows[0].Digest)
}

func TestDigestCacheSaveSkipsWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "digests.csv")
	dc := &DigestCache{path: path, Entries: map[string]*DigestEntry{}}
	require.NoError(t, dc.Save())

	_, err := os.Stat(path)
	assert.Error(t, err)
}
