package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devc-cli/devc/internal/devc"
)

func TestLoadSecretsFileParsesKeyValueLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nAPI_KEY=abc123\n\nDB_PASSWORD=hunter2\n"), 0o644))

	secrets, err := loadSecretsFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"API_KEY": "abc123", "DB_PASSWORD": "hunter2"}, secrets)
}

func TestLoadSecretsFileErrorsOnMissingFile(t *testing.T) {
	_, err := loadSecretsFile("/nonexistent/secrets.json")
	assert.Error(t, err)
}

func TestParseKeyValuePairsSkipsEntriesWithoutEquals(t *testing.T) {
	out := parseKeyValuePairs([]string{"FOO=bar", "malformed", "BAZ=qux=extra"})
	assert.Equal(t, map[string]string{"FOO": "bar", "BAZ": "qux=extra"}, out)
}

func TestParseRemoteEnvBuildsEnvVarMap(t *testing.T) {
	out := parseRemoteEnv([]string{"FOO=bar"})
	assert.Equal(t, devc.EnvVarMap{"FOO": "bar"}, out)
}

func TestParseAdditionalFeaturesEmptyStringReturnsEmptyMap(t *testing.T) {
	assert.Equal(t, devc.FeatureMap{}, parseAdditionalFeatures(""))
}

func TestParseAdditionalFeaturesParsesJSONObject(t *testing.T) {
	raw := `{"ghcr.io/devcontainers/features/go": {"version": "1.21"}}`
	fm := parseAdditionalFeatures(raw)
	require.Contains(t, fm, "ghcr.io/devcontainers/features/go")
}

func TestParseAdditionalFeaturesInvalidJSONReturnsEmptyMap(t *testing.T) {
	assert.Equal(t, devc.FeatureMap{}, parseAdditionalFeatures("not json"))
}

func TestMergeFeatureMapsBasePrecedenceByDefault(t *testing.T) {
	base := devc.FeatureMap{"shared": {}, "base-only": {}}
	extra := devc.FeatureMap{"shared": {"version": devc.FeatureValue{}}, "extra-only": {}}

	merged := mergeFeatureMaps(base, extra, false)
	assert.Contains(t, merged, "base-only")
	assert.Contains(t, merged, "extra-only")
	assert.Equal(t, base["shared"], merged["shared"])
}

func TestMergeFeatureMapsPreferExtraOverridesShared(t *testing.T) {
	version := "1.0"
	base := devc.FeatureMap{"shared": {"version": devc.FeatureValue{String: nil}}}
	extra := devc.FeatureMap{"shared": {"version": devc.FeatureValue{String: &version}}}

	merged := mergeFeatureMaps(base, extra, true)
	assert.Equal(t, extra["shared"], merged["shared"])
}

func TestUserEnvProbeFromFlagEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, userEnvProbeFromFlag(""))
}

func TestUserEnvProbeFromFlagReturnsPointerToMode(t *testing.T) {
	mode := userEnvProbeFromFlag("loginShell")
	require.NotNil(t, mode)
	assert.Equal(t, devc.UserEnvProbeLoginShell, *mode)
}

func TestApplyDotfilesOverridesNoOpWhenAllEmpty(t *testing.T) {
	var cfg *devc.DotfilesConfig
	applyDotfilesOverrides(&cfg, "", "", "")
	assert.Nil(t, cfg)
}

func TestApplyDotfilesOverridesCreatesConfigWhenAbsent(t *testing.T) {
	var cfg *devc.DotfilesConfig
	applyDotfilesOverrides(&cfg, "https://example.com/dotfiles", "install.sh", "~/dotfiles")

	require.NotNil(t, cfg)
	assert.Equal(t, "https://example.com/dotfiles", *cfg.Repository)
	assert.Equal(t, "install.sh", *cfg.InstallCommand)
	assert.Equal(t, "~/dotfiles", *cfg.TargetPath)
}

func TestApplyDotfilesOverridesOnlyUpdatesGivenFields(t *testing.T) {
	repo := "https://example.com/original"
	cfg := &devc.DotfilesConfig{Repository: &repo}

	applyDotfilesOverrides(&cfg, "", "custom-install.sh", "")

	assert.Equal(t, repo, *cfg.Repository)
	assert.Equal(t, "custom-install.sh", *cfg.InstallCommand)
	assert.Nil(t, cfg.TargetPath)
}
