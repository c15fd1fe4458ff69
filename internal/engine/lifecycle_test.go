package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devc-cli/devc/internal/runtime"
)

func TestEventPhaseNameMapsKnownEvents(t *testing.T) {
	assert.Equal(t, PhaseOnCreate, eventPhaseName(runtime.LifecycleOnCreate))
	assert.Equal(t, PhaseUpdateContent, eventPhaseName(runtime.LifecycleUpdateContent))
	assert.Equal(t, PhasePostCreate, eventPhaseName(runtime.LifecyclePostCreate))
	assert.Equal(t, PhasePostStart, eventPhaseName(runtime.LifecyclePostStart))
	assert.Equal(t, PhasePostAttach, eventPhaseName(runtime.LifecyclePostAttach))
	assert.Equal(t, Phase("initialize"), eventPhaseName(runtime.LifecycleInitialize))
}

func TestExitCodeFromErrParsesEmbeddedCode(t *testing.T) {
	err := errors.New("command failed: exit code: 42")
	assert.Equal(t, 42, exitCodeFromErr(err))
}

func TestExitCodeFromErrDefaultsToOneWhenUnparseable(t *testing.T) {
	err := errors.New("connection reset by peer")
	assert.Equal(t, 1, exitCodeFromErr(err))
}

func TestRunOnHostArgvSucceedsForZeroExit(t *testing.T) {
	err := runOnHostArgv(context.Background(), "true")
	assert.Nil(t, err)
}

func TestRunOnHostArgvFailsForNonZeroExit(t *testing.T) {
	err := runOnHostArgv(context.Background(), "false")
	assert.NotNil(t, err)
}

func TestRunOnHostShellRunsCommandString(t *testing.T) {
	err := runOnHostShell(context.Background(), "exit 0")
	assert.Nil(t, err)
}
