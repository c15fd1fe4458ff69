package ociclient

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
)

func TestDesiredTagsForVersionStable(t *testing.T) {
	v, err := semver.NewVersion("1.2.3")
	assert.Nil(t, err)
	assert.ElementsMatch(t, []string{"1", "1.2", "1.2.3", "latest"}, DesiredTagsForVersion(v))
}

func TestDesiredTagsForVersionPrerelease(t *testing.T) {
	v, err := semver.NewVersion("1.2.3-beta.1")
	assert.Nil(t, err)
	assert.ElementsMatch(t, []string{"1", "1.2", "1.2.3-beta.1"}, DesiredTagsForVersion(v))
}

func TestHighestSemverTag(t *testing.T) {
	assert.Equal(t, "2.0.0", HighestSemverTag([]string{"1.0.0", "2.0.0", "not-semver", "1.5.0"}))
}

func TestHighestStableSemverTagExcludesPrerelease(t *testing.T) {
	assert.Equal(t, "1.5.0", HighestStableSemverTag([]string{"1.0.0", "2.0.0-beta.1", "1.5.0"}))
}

func TestPublishPlanSkippedTags(t *testing.T) {
	plan := PublishPlan{
		DesiredTags:  []string{"1", "1.2", "1.2.3", "latest"},
		ExistingTags: []string{"1", "1.2"},
		ToPublish:    []string{"1.2.3", "latest"},
	}
	assert.ElementsMatch(t, []string{"1", "1.2"}, plan.SkippedTags())
}
