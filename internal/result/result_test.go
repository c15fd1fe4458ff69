package result

import (
	"testing"

	"github.com/devc-cli/devc/internal/engine"
	"github.com/devc-cli/devc/internal/features"
	"github.com/devc-cli/devc/internal/ociclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUpOmitsEmptyComposeProjectName(t *testing.T) {
	doc := NewUp("abc123", "", "vscode", "/workspaces/app", nil, nil)
	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "composeProjectName")
	assert.Contains(t, string(data), `"outcome": "success"`)
}

func TestNewRunUserCommandsCarriesResult(t *testing.T) {
	doc := NewRunUserCommands(engine.ResultPrebuild)
	assert.Equal(t, "success", doc.Outcome)
	assert.Equal(t, engine.ResultPrebuild, doc.Result)
}

func TestNewOutdatedPassesThroughReports(t *testing.T) {
	reports := map[string]features.VersionReport{
		"ghcr.io/devcontainers/features/go": {Current: "1.2.0", Latest: "1.3.0", LatestMajor: "1"},
	}
	doc := NewOutdated(reports)
	assert.Equal(t, reports, doc.Features)
}

func TestPublishedFeatureFromMapsPushResult(t *testing.T) {
	pr := &ociclient.PushResult{
		Digest:        "sha256:deadbeef",
		PublishedTags: []string{"1", "1.2", "1.2.3"},
		SkippedTags:   []string{"latest"},
		MovedLatest:   false,
	}
	f := PublishedFeatureFrom("go", "1.2.3", "ghcr.io", "devcontainers/features", pr)
	assert.Equal(t, "go", f.FeatureID)
	assert.Equal(t, "sha256:deadbeef", f.Digest)
	assert.Equal(t, []string{"1", "1.2", "1.2.3"}, f.PublishedTags)
}

func TestNewFeaturesPublishSummarizesAcrossFeatures(t *testing.T) {
	doc := NewFeaturesPublish([]PublishedFeature{
		{FeatureID: "go", PublishedTags: []string{"1", "1.2"}, SkippedTags: []string{"latest"}},
		{FeatureID: "node", PublishedTags: []string{"20"}, SkippedTags: nil},
	}, "sha256:cafebabe")

	assert.Equal(t, 2, doc.Summary.Features)
	assert.Equal(t, 3, doc.Summary.PublishedTags)
	assert.Equal(t, 1, doc.Summary.SkippedTags)
	require.NotNil(t, doc.Collection)
	assert.Equal(t, "sha256:cafebabe", doc.Collection.Digest)
}

func TestNewFeaturesPublishOmitsCollectionWhenDigestEmpty(t *testing.T) {
	doc := NewFeaturesPublish(nil, "")
	assert.Nil(t, doc.Collection)
	assert.Equal(t, 0, doc.Summary.Features)
}
