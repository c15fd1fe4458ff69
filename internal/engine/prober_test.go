package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devc-cli/devc/internal/devc"
)

func TestParseExportOutputSkipsShellFunctions(t *testing.T) {
	output := "HOME=/root\x00PATH=/usr/bin:/bin\x00BASH_FUNC_module%%=() {  :\n}\x00"
	vars := ParseExportOutput(output)
	assert.Equal(t, "/root", vars["HOME"])
	assert.Equal(t, "/usr/bin:/bin", vars["PATH"])
	_, hasFunc := vars["BASH_FUNC_module%%"]
	assert.False(t, hasFunc)
}

func TestParseExportOutputPreservesEmbeddedNewlines(t *testing.T) {
	output := "MULTILINE=first\nsecond\x00FOO=bar\x00"
	vars := ParseExportOutput(output)
	assert.Equal(t, "first\nsecond", vars["MULTILINE"])
	assert.Equal(t, "bar", vars["FOO"])
}

func TestParseExportOutputSkipsMalformedRecords(t *testing.T) {
	vars := ParseExportOutput("not-a-valid-assignment\x00FOO=bar\x00")
	assert.Equal(t, devc.EnvVarMap{"FOO": "bar"}, vars)
}

func TestShellForProbeModes(t *testing.T) {
	assert.Equal(t, []string{"/bin/sh", "-l", "-c", "env -0"}, ShellForProbe(devc.UserEnvProbeLoginShell))
	assert.Equal(t, []string{"/bin/sh", "-i", "-c", "env -0"}, ShellForProbe(devc.UserEnvProbeInteractiveShell))
	assert.Equal(t, []string{"/bin/sh", "-l", "-i", "-c", "env -0"}, ShellForProbe(devc.UserEnvProbeLoginInteractiveShell))
	assert.Equal(t, []string{"/bin/sh", "-c", "env -0"}, ShellForProbe(devc.UserEnvProbeNone))
}

func TestSaveAndLoadCachedProbeRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cache"), 0o755))

	vars := devc.EnvVarMap{"FOO": "bar"}
	SaveProbeCache("container123", "vscode", vars)

	result, ok := LoadCachedProbe("container123", "vscode")
	assert.True(t, ok)
	assert.Equal(t, vars, result.Env)
	assert.Equal(t, "cache", result.ShellUsed)
	assert.Equal(t, 1, result.VarCount)
}

func TestLoadCachedProbeMissingReturnsFalse(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".cache"), 0o755))

	_, ok := LoadCachedProbe("nonexistent", "vscode")
	assert.False(t, ok)
}

func TestLoadCachedProbeRejectsNonFlatJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	cacheDir := filepath.Join(home, ".cache", "devc")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	path := filepath.Join(cacheDir, "env_probe_wrapped_vscode.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vars": {"FOO": "bar"}}`), 0o644))

	_, ok := LoadCachedProbe("wrapped", "vscode")
	assert.False(t, ok)
}
