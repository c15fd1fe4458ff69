package features

import (
	"testing"

	"github.com/devc-cli/devc/internal/devc"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestFeatureEnvSanitizesOptionNames(t *testing.T) {
	inst := &Installer{parsersByID: map[string]*devc.DevcontainerFeatureParser{
		"./alpha": {
			Config: devc.DevcontainerFeatureConfig{
				ID: "alpha",
				Options: map[string]devc.FeatureOption{
					"1.install-extra-stuff": {
						Type:    devc.FeatureOptionTypeBoolean,
						Default: &devc.FeatureValue{Bool: boolPtr(false)},
						Value:   &devc.FeatureValue{Bool: boolPtr(true)},
					},
					"version": {
						Type:    devc.FeatureOptionTypeString,
						Default: &devc.FeatureValue{String: strPtr("latest")},
					},
				},
			},
		},
	}}

	env, err := inst.FeatureEnv("./alpha")
	assert.Nil(t, err)
	assert.Equal(t, "true", env["_INSTALL_EXTRA_STUFF"])
	assert.Equal(t, "latest", env["VERSION"])
}

func TestFeatureEnvUnknownFeature(t *testing.T) {
	inst := &Installer{parsersByID: map[string]*devc.DevcontainerFeatureParser{}}
	_, err := inst.FeatureEnv("./missing")
	assert.NotNil(t, err)
}
