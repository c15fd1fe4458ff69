package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devc-cli/devc/internal/clierr"
)

func TestRunBuildRejectsPushAndOutputTogether(t *testing.T) {
	c := &Command{Options: Options{Push: true, Output: "/tmp/image.tar", OutputFormat: "text", NoRedact: true}}
	code := c.runBuild(nil)
	assert.Equal(t, clierr.ExitFatal, code)
}
