package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devc-cli/devc/internal/devc"
)

func TestRunDotfilesStepNoOpWhenConfigNil(t *testing.T) {
	err := runDotfilesStep(context.Background(), nil, "vscode", nil)
	assert.Nil(t, err)
}

func TestRunDotfilesStepNoOpWhenRepositoryUnset(t *testing.T) {
	err := runDotfilesStep(context.Background(), nil, "vscode", &devc.DotfilesConfig{})
	assert.Nil(t, err)
}

func TestRunDotfilesStepNoOpWhenRepositoryEmpty(t *testing.T) {
	empty := ""
	err := runDotfilesStep(context.Background(), nil, "vscode", &devc.DotfilesConfig{Repository: &empty})
	assert.Nil(t, err)
}
