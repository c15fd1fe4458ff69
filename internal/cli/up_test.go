package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devc-cli/devc/internal/devc"
)

func TestCreateImageTagBaseFallsBackToContextBasenameOutsideGitRepo(t *testing.T) {
	dir := t.TempDir()
	ctxDir := dir + "/my-project"
	p := &devc.DevcontainerParser{}
	p.Config.Context = &ctxDir

	base := createImageTagBase(p)
	assert.Equal(t, "my-project", base)
}

func TestCreateImageTagBaseDefaultsContextToCurrentDirectory(t *testing.T) {
	p := &devc.DevcontainerParser{}
	base := createImageTagBase(p)
	assert.NotEmpty(t, base)
}

func TestInvalidContainerNamePatternStripsDisallowedCharacters(t *testing.T) {
	assert.Equal(t, "feature_repo--my_branch", invalidContainerNamePattern.ReplaceAllString("feature/repo--my branch", "_"))
}
