package ociclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOCIIdentifier(t *testing.T) {
	assert.True(t, IsOCIIdentifier("ghcr.io/acme/repo/feature:1.0.0"))
	assert.False(t, IsOCIIdentifier("./local-feature"))
	assert.False(t, IsOCIIdentifier("/abs/local-feature"))
	assert.False(t, IsOCIIdentifier("https://example.com/feature.tgz"))
}

func TestParseRefDefaultsToLatest(t *testing.T) {
	ref, err := ParseRef("ghcr.io/acme/repo/feature")
	assert.Nil(t, err)
	assert.Equal(t, "ghcr.io", ref.Registry)
	assert.Equal(t, "acme/repo", ref.Namespace)
	assert.Equal(t, "feature", ref.Name)
	assert.Equal(t, "latest", ref.Tag)
	assert.Equal(t, "", ref.Digest)
}

func TestParseRefWithTag(t *testing.T) {
	ref, err := ParseRef("ghcr.io/acme/repo/feature:1.2.3")
	assert.Nil(t, err)
	assert.Equal(t, "1.2.3", ref.Tag)
	assert.Equal(t, "ghcr.io/acme/repo/feature:1.2.3", ref.String())
}

func TestParseRefWithDigest(t *testing.T) {
	ref, err := ParseRef("ghcr.io/acme/repo/feature@sha256:abcd1234")
	assert.Nil(t, err)
	assert.Equal(t, "sha256:abcd1234", ref.Digest)
	assert.Equal(t, "ghcr.io/acme/repo/feature@sha256:abcd1234", ref.String())
}

func TestParseRefRejectsNonOCI(t *testing.T) {
	_, err := ParseRef("./local-feature")
	assert.NotNil(t, err)
}

func TestParseRefHandlesPortedRegistry(t *testing.T) {
	ref, err := ParseRef("localhost:5000/acme/feature")
	assert.Nil(t, err)
	assert.Equal(t, "localhost:5000", ref.Registry)
	assert.Equal(t, "acme", ref.Namespace)
	assert.Equal(t, "feature", ref.Name)
	assert.Equal(t, "latest", ref.Tag)
}
