package devc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devc-cli/devc/internal/clierr"
)

func TestFindConfigPrefersDotDevcontainerDirectory(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, ".devcontainer"), 0o755))
	nested := filepath.Join(workspace, ".devcontainer", "devcontainer.json")
	require.NoError(t, os.WriteFile(nested, []byte("{}"), 0o644))
	root := filepath.Join(workspace, ".devcontainer.json")
	require.NoError(t, os.WriteFile(root, []byte("{}"), 0o644))

	found, err := FindConfig(workspace, "")
	assert.Nil(t, err)
	assert.Equal(t, nested, found)
}

func TestFindConfigFallsBackToRootFile(t *testing.T) {
	workspace := t.TempDir()
	root := filepath.Join(workspace, ".devcontainer.json")
	require.NoError(t, os.WriteFile(root, []byte("{}"), 0o644))

	found, err := FindConfig(workspace, "")
	assert.Nil(t, err)
	assert.Equal(t, root, found)
}

func TestFindConfigReturnsErrorWhenNothingFound(t *testing.T) {
	workspace := t.TempDir()
	_, err := FindConfig(workspace, "")
	assert.NotNil(t, err)
}

func TestFindConfigRejectsExplicitPathWithWrongBasename(t *testing.T) {
	_, err := FindConfig("/whatever", "/some/path/config.json")
	require.Error(t, err)
	var invalid *clierr.InvalidFilename
	assert.ErrorAs(t, err, &invalid)
}

func TestFindConfigAcceptsExplicitPathVerbatim(t *testing.T) {
	found, err := FindConfig("/whatever", "/some/path/devcontainer.json")
	assert.Nil(t, err)
	assert.Equal(t, "/some/path/devcontainer.json", found)
}

func TestParseRefusesUnvalidatedConfig(t *testing.T) {
	p := &DevcontainerParser{}
	err := p.Parse()
	assert.NotNil(t, err)
}

func TestNewDevcontainerParserResolvesAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devcontainer.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"image": "ubuntu:22.04"}`), 0o644))

	p, err := NewDevcontainerParser(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, p.Filepath)
	assert.False(t, p.IsValidConfig)
}

func TestValidateAndParseMinimalImageConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devcontainer.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"image": "mcr.microsoft.com/devcontainers/go:1",
		"remoteUser": "vscode"
	}`), 0o644))

	p, err := NewDevcontainerParser(configPath)
	require.NoError(t, err)

	require.NoError(t, p.Validate())
	assert.True(t, p.IsValidConfig)

	require.NoError(t, p.Parse())
	require.NotNil(t, p.Config.Image)
	assert.Equal(t, "mcr.microsoft.com/devcontainers/go:1", *p.Config.Image)
	require.NotNil(t, p.Config.WorkspaceFolder)
	assert.Equal(t, DefWorkspacePath, *p.Config.WorkspaceFolder)
	require.NotNil(t, p.Config.ShutdownAction)
	assert.Equal(t, ShutdownActionStopContainer, *p.Config.ShutdownAction)
}

func TestNormalizeValuesDefaultsOverrideCommandByComposePresence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devcontainer.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"dockerComposeFile": "docker-compose.yml",
		"service": "app",
		"workspaceFolder": "/workspace"
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services: {}\n"), 0o644))

	p, err := NewDevcontainerParser(configPath)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	require.NoError(t, p.Parse())

	require.NotNil(t, p.Config.OverrideCommand)
	assert.False(t, *p.Config.OverrideCommand)
}
