package devc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureOptionEffectiveValuePrefersExplicitOverDefault(t *testing.T) {
	defVal := FeatureValue{String: strPtr("default")}
	opt := FeatureOption{Type: FeatureOptionTypeString, Default: &defVal}
	assert.Equal(t, &defVal, opt.EffectiveValue())

	explicit := FeatureValue{String: strPtr("explicit")}
	opt.SetOption(&explicit)
	assert.Equal(t, &explicit, opt.EffectiveValue())
}

func TestDevcontainerFeatureParserSetOptionRejectsUnknownName(t *testing.T) {
	p := &DevcontainerFeatureParser{
		Config: DevcontainerFeatureConfig{
			ID:      "go",
			Options: map[string]FeatureOption{"version": {Type: FeatureOptionTypeString}},
		},
	}
	err := p.SetOption("nonexistent", &FeatureValue{String: strPtr("1.21")})
	assert.Error(t, err)
}

func TestDevcontainerFeatureParserSetOptionUpdatesOption(t *testing.T) {
	p := &DevcontainerFeatureParser{
		Config: DevcontainerFeatureConfig{
			ID:      "go",
			Options: map[string]FeatureOption{"version": {Type: FeatureOptionTypeString}},
		},
	}
	require.NoError(t, p.SetOption("version", &FeatureValue{String: strPtr("1.22")}))
	assert.Equal(t, "1.22", *p.Config.Options["version"].Value.String)
}

func TestValidateAndParseMinimalFeatureConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devcontainer-feature.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"id": "go",
		"version": "1.0.0",
		"options": {
			"version": {"type": "string", "default": "1.21"}
		}
	}`), 0o644))

	p, err := NewDevcontainerFeatureParser(configPath, nil)
	require.NoError(t, err)

	require.NoError(t, p.Validate())
	require.NoError(t, p.Parse())

	assert.Equal(t, "go", p.Config.ID)
	assert.Equal(t, "1.0.0", p.Config.Version)
	require.Contains(t, p.Config.Options, "version")
	assert.Equal(t, "1.21", *p.Config.Options["version"].Default.String)
}

func strPtr(s string) *string { return &s }
