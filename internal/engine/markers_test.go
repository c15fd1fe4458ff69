package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkerPathFormatsPhaseName(t *testing.T) {
	assert.Equal(t, "/data/.onCreateCommandMarker", markerPath("/data", PhaseOnCreate))
	assert.Equal(t, "$HOME/.devcontainer/.postAttachCommandMarker", markerPath(DefaultContainerDataFolder, PhasePostAttach))
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'hello'`, shellQuote("hello"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestMarkerSatisfiedFalseWhenTimestampEmpty(t *testing.T) {
	assert.False(t, markerSatisfied(nil, nil, "root", "/data", PhaseOnCreate, ""))
}
