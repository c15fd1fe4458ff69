package cli

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devc-cli/devc/internal/redact"
)

func TestJSONModeReflectsOutputFormat(t *testing.T) {
	c := &Command{Options: Options{OutputFormat: "json"}}
	assert.True(t, c.jsonMode())

	c.Options.OutputFormat = "text"
	assert.False(t, c.jsonMode())
}

func TestPrivilegedPortElevatorAddsConfiguredOffset(t *testing.T) {
	c := &Command{Options: Options{PortOffset: 8000}}
	assert.Equal(t, uint16(8022), c.privilegedPortElevator(22))
}

func TestSecretsFromFileReturnsNilWhenUnset(t *testing.T) {
	c := &Command{}
	assert.Nil(t, c.secretsFromFile())
}

func withCapturedStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestEmitWritesFallbackTextInTextMode(t *testing.T) {
	c := &Command{Options: Options{OutputFormat: "text", NoRedact: true}}
	out := withCapturedStdout(t, func() {
		err := c.emit(map[string]string{"outcome": "success"}, "up succeeded")
		assert.Nil(t, err)
	})
	assert.Equal(t, "up succeeded\n", out)
}

func TestEmitWritesJSONDocumentInJSONMode(t *testing.T) {
	c := &Command{Options: Options{OutputFormat: "json", NoRedact: true}}
	out := withCapturedStdout(t, func() {
		err := c.emit(map[string]string{"outcome": "success"}, "fallback")
		assert.Nil(t, err)
	})
	assert.Contains(t, out, `"outcome": "success"`)
}

func TestEmitRedactsSecretsUnlessNoRedact(t *testing.T) {
	c := &Command{
		Options:  Options{OutputFormat: "text"},
		redactor: redact.NewRegistry(map[string]string{"TOKEN": "supersecret"}),
	}
	out := withCapturedStdout(t, func() {
		err := c.emit(nil, "token is supersecret")
		assert.Nil(t, err)
	})
	assert.Equal(t, "token is ****\n", out)
}
